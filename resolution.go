package berth

import (
	"reflect"

	"github.com/google/uuid"
)

// Resolution tracks one resolution graph: the chain of identities currently
// mid-construction, used for cycle and depth detection, and the
// graph-scoped instances built during this top-level call. Factories
// receive the Resolution and resolve their own dependencies through it so
// nested work stays inside the same graph.
//
// A Resolution belongs to one logical task. It is not safe for concurrent
// use and must not be retained past the factory call that received it.
type Resolution struct {
	env   *Environment
	id    uuid.UUID
	chain []Identity
	graph map[Identity]any
}

func newResolution(env *Environment) *Resolution {
	return &Resolution{env: env, id: uuid.New()}
}

// Environment returns the environment this resolution runs against.
func (r *Resolution) Environment() *Environment { return r.env }

// GraphID identifies this resolution graph in logs and observers. Every
// top-level resolve starts a new graph with a new ID.
func (r *Resolution) GraphID() uuid.UUID { return r.id }

// Depth returns the number of identities currently mid-construction.
func (r *Resolution) Depth() int { return len(r.chain) }

// Chain returns a copy of the in-flight identity chain, outermost first.
func (r *Resolution) Chain() []Identity {
	out := make([]Identity, len(r.chain))
	copy(out, r.chain)
	return out
}

func (r *Resolution) inChain(id Identity) bool {
	for _, c := range r.chain {
		if c == id {
			return true
		}
	}
	return false
}

// keyFor scans the chain innermost-first for a keyed resolution of typ,
// yielding the key an enclosing node was requested with.
func (r *Resolution) keyFor(typ reflect.Type) (any, bool) {
	for i := len(r.chain) - 1; i >= 0; i-- {
		if r.chain[i].typ == typ && r.chain[i].key != nil {
			return r.chain[i].key, true
		}
	}
	return nil, false
}

// ResolveAny resolves id inside this graph. The guards run first, in chain
// order: a repeated identity is a cycle, a chain at the limit is runaway
// depth; both carry the in-flight chain plus the offending identity. Only
// then is the registry consulted.
func (r *Resolution) ResolveAny(id Identity) (any, error) {
	if id.typ == nil {
		return nil, &NotRegisteredError{Identity: id}
	}
	if id.key != nil {
		if t := reflect.TypeOf(id.key); !t.Comparable() {
			return nil, &InvalidKeyError{Identity: id.bare(), KeyType: t}
		}
	}

	if r.inChain(id) {
		return nil, &CircularDependencyError{Identity: id, Chain: append(r.Chain(), id)}
	}
	if len(r.chain) >= r.env.maxDepth {
		return nil, &MaxDepthError{Limit: r.env.maxDepth, Chain: append(r.Chain(), id)}
	}

	g := r.env.reg
	b, ok := g.lookup(id)
	if !ok {
		return nil, &NotRegisteredError{Identity: id}
	}

	if err := g.observers.before(r, id); err != nil {
		return nil, err
	}
	v, err := r.resolveBinding(g, b, id)
	return g.observers.after(r, id, v, err)
}

// resolveBinding routes the node to its storage strategy. Transient and
// graph scopes never touch the registry caches: transient skips storage
// entirely, graph instances live in this resolution's own slots and die
// with it. Retained scopes go through the shared or pinned cache per the
// binding's category.
func (r *Resolution) resolveBinding(g *registry, b *binding, id Identity) (any, error) {
	if b.category == CategoryPinned {
		g.assertPinned(id)
	}

	switch b.scope {
	case ScopeTransient:
		return r.invoke(b, id)
	case ScopeGraph:
		if v, ok := r.graph[id]; ok {
			return v, nil
		}
		v, err := r.invoke(b, id)
		if err != nil {
			return nil, err
		}
		if r.graph == nil {
			r.graph = make(map[Identity]any)
		}
		r.graph[id] = v
		return v, nil
	}

	if b.category == CategoryPinned {
		if v, ok := g.fetchPinned(id, b); ok {
			return v, nil
		}
		v, err := r.invoke(b, id)
		if err != nil {
			return nil, err
		}
		return g.commitPinned(id, b, v), nil
	}

	// Atomic check-and-create: read-locked probe, factory outside any lock,
	// write-locked double-checked commit.
	if v, ok := g.fetchShared(id, b); ok {
		return v, nil
	}
	v, err := r.invoke(b, id)
	if err != nil {
		return nil, err
	}
	return g.commitShared(id, b, v), nil
}

// invoke runs the factory for id with the chain extended, popping on every
// exit path, panics included. Factory failures are wrapped once at the
// originating identity; errors already in the resolution taxonomy pass
// through untouched so nested failures keep their origin.
func (r *Resolution) invoke(b *binding, id Identity) (v any, err error) {
	r.chain = append(r.chain, id)
	defer func() { r.chain = r.chain[:len(r.chain)-1] }()

	if id.key != nil {
		v, err = b.keyed(r, id.key)
	} else {
		v, err = b.factory(r)
	}
	if err != nil {
		if isResolutionError(err) {
			return nil, err
		}
		return nil, &FactoryError{Identity: id, Err: err}
	}
	return v, nil
}
