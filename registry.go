package berth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// binding is one registration: the factory, the scope and category declared
// for the identity, and the wrap that turns a built instance into a cache
// handle. Exactly one of factory and keyed is set.
type binding struct {
	identity Identity
	factory  func(*Resolution) (any, error)
	keyed    func(*Resolution, any) (any, error)
	scope    Scope
	category Category
	wrap     func(any) handle
}

// cached pairs a handle with the binding that stored it. Entries left behind
// by an overwritten binding fail the owner check and read as misses, so
// re-registration invalidates lazily without extra bookkeeping; partition
// resets match on the owner's scope, the scope the entry was stored under.
type cached struct {
	h     handle
	owner *binding
}

// registry is the per-environment store: bindings, the shared cache, the
// pinned cache, and the strand guarding the latter. Every Environment view
// of one environment shares a single registry.
type registry struct {
	mu       sync.RWMutex
	bindings map[Identity]*binding
	cache    map[Identity]cached

	// pinned entries are touched only on the strand goroutine and never
	// under mu; that is the whole point of the pinned category. ownerID
	// mirrors the strand's goroutine id for lock-free ownership asserts.
	pinned    map[Identity]cached
	strandRef *strand
	ownerID   atomic.Int64

	observers observerChain
	log       *zap.Logger
}

func newRegistry(log *zap.Logger) *registry {
	return &registry{
		bindings: make(map[Identity]*binding),
		cache:    make(map[Identity]cached),
		pinned:   make(map[Identity]cached),
		log:      log,
	}
}

// register stores b for its identity, replacing any previous binding (last
// write wins) unless the replacement would change the storage category.
// Stale cache entries of the replaced binding are invalidated lazily through
// the owner check, so no cache locking beyond the bindings map is needed.
func (g *registry) register(b *binding) error {
	g.mu.Lock()
	prev, overwrite := g.bindings[b.identity]
	if overwrite && prev.category != b.category {
		g.mu.Unlock()
		return &CategoryConflictError{
			Identity:   b.identity,
			Registered: prev.category,
			Requested:  b.category,
		}
	}
	g.bindings[b.identity] = b
	g.mu.Unlock()

	if b.category == CategoryPinned {
		g.ensureStrand()
	}
	g.log.Debug("service registered",
		zap.Stringer("identity", b.identity),
		zap.String("scope", string(b.scope)),
		zap.String("category", string(b.category)),
		zap.Bool("keyed", b.keyed != nil),
		zap.Bool("overwrite", overwrite),
	)
	return nil
}

// lookup finds the binding able to serve id: bare identities need a bare
// factory, keyed identities need a keyed one registered under the bare type.
// A mismatch either way means the requested slot has no factory.
func (g *registry) lookup(id Identity) (*binding, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if id.key == nil {
		b, ok := g.bindings[id]
		if !ok || b.factory == nil {
			return nil, false
		}
		return b, true
	}
	b, ok := g.bindings[id.bare()]
	if !ok || b.keyed == nil {
		return nil, false
	}
	return b, true
}

// fetchShared is the fast path: a read-locked cache probe. It misses when
// the slot is empty, owned by an overwritten binding, or weakly held and
// already collected.
func (g *registry) fetchShared(id Identity, b *binding) (any, bool) {
	g.mu.RLock()
	ent, ok := g.cache[id]
	g.mu.RUnlock()
	if !ok || ent.owner != b {
		return nil, false
	}
	return ent.h.fetch()
}

// commitShared inserts a freshly built value under the exclusive lock,
// double-checking the slot first: when a racing caller landed an instance
// while this one was building, the racer's instance wins and the newly built
// value is discarded. The factory may have run twice; only one instance is
// ever observable.
func (g *registry) commitShared(id Identity, b *binding, v any) any {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ent, ok := g.cache[id]; ok && ent.owner == b {
		if w, live := ent.h.fetch(); live {
			return w
		}
	}
	g.cache[id] = cached{h: b.wrap(v), owner: b}
	return v
}

// fetchPinned probes the pinned cache. No locks: the caller has already been
// asserted onto the strand goroutine.
func (g *registry) fetchPinned(id Identity, b *binding) (any, bool) {
	ent, ok := g.pinned[id]
	if !ok || ent.owner != b {
		return nil, false
	}
	return ent.h.fetch()
}

// commitPinned inserts directly: single ownership means no racer can have
// filled the slot since the probe.
func (g *registry) commitPinned(id Identity, b *binding, v any) any {
	g.pinned[id] = cached{h: b.wrap(v), owner: b}
	return v
}

// assertPinned panics unless the caller runs on the environment's pinned
// domain. Touching a pinned slot from anywhere else is a programming error,
// not a recoverable condition: the slot is lock-free only because of this
// contract.
func (g *registry) assertPinned(id Identity) {
	if goid() != g.ownerID.Load() {
		panic(fmt.Sprintf("berth: pinned service %s resolved off its owner goroutine; use RunPinned", id))
	}
}

// ensureStrand starts the pinned domain if it is not running and returns it.
func (g *registry) ensureStrand() *strand {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.strandRef == nil {
		g.strandRef = newStrand()
		g.ownerID.Store(g.strandRef.id.Load())
		g.log.Debug("pinned domain started")
	}
	return g.strandRef
}

// resetCache drops cached instances, keeping registrations. With a scope it
// drops only entries stored under that scope or partition label. It returns
// once both the shared and the pinned caches are clear, so callers can rely
// on the reset having fully completed, and aggregates Dispose failures.
func (g *registry) resetCache(ctx context.Context, scope *Scope) error {
	g.mu.Lock()
	var victims []handle
	for id, ent := range g.cache {
		if scope != nil && ent.owner.scope != *scope {
			continue
		}
		victims = append(victims, ent.h)
		delete(g.cache, id)
	}
	s := g.strandRef
	g.mu.Unlock()

	err := disposeAll(victims)

	if s != nil {
		res := make(chan error, 1)
		herr := s.run(ctx, func() {
			var pinnedVictims []handle
			for id, ent := range g.pinned {
				if scope != nil && ent.owner.scope != *scope {
					continue
				}
				pinnedVictims = append(pinnedVictims, ent.h)
				delete(g.pinned, id)
			}
			res <- disposeAll(pinnedVictims)
		})
		if herr != nil {
			err = multierr.Append(err, herr)
		} else {
			err = multierr.Append(err, <-res)
		}
	}

	if scope == nil {
		g.log.Debug("cache reset", zap.Int("dropped", len(victims)))
	} else {
		g.log.Debug("cache partition reset",
			zap.String("scope", string(*scope)),
			zap.Int("dropped", len(victims)))
	}
	return err
}

// resetAll is the full teardown: caches, registrations, pinned domain. The
// registry stays usable; a later pinned registration starts a fresh domain.
func (g *registry) resetAll(ctx context.Context) error {
	err := g.resetCache(ctx, nil)

	g.mu.Lock()
	g.bindings = make(map[Identity]*binding)
	s := g.strandRef
	g.strandRef = nil
	g.ownerID.Store(0)
	g.mu.Unlock()

	if s != nil {
		s.close()
	}
	g.log.Debug("environment torn down")
	return err
}

// cachedFor reports whether some live cache entry belongs to b. Pinned
// entries are only observable from the strand and read as absent elsewhere.
func (g *registry) cachedFor(b *binding) bool {
	if b.category == CategoryPinned {
		if goid() != g.ownerID.Load() {
			return false
		}
		for _, ent := range g.pinned {
			if ent.owner != b {
				continue
			}
			if _, live := ent.h.fetch(); live {
				return true
			}
		}
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, ent := range g.cache {
		if ent.owner != b {
			continue
		}
		if _, live := ent.h.fetch(); live {
			return true
		}
	}
	return false
}

// disposeAll releases strong-held instances that opt into Disposable. Weak
// entries are skipped: the cache never owned their instances.
func disposeAll(handles []handle) error {
	var err error
	for _, h := range handles {
		sh, ok := h.(strongHandle)
		if !ok {
			continue
		}
		if d, ok := sh.value.(Disposable); ok {
			err = multierr.Append(err, d.Dispose())
		}
	}
	return err
}
