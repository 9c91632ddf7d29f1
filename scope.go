package berth

import "weak"

// Scope is the caching policy attached to a registration. Beyond the
// predefined policies, any other value names an independent cache partition:
// entries are held like singletons but invalidated separately through
// ResetScope, so e.g. Scope("session") services can be dropped together
// without touching the rest of the cache.
type Scope string

const (
	// ScopeSingleton caches one instance per environment until reset. The
	// default when a registration names no scope.
	ScopeSingleton Scope = "singleton"

	// ScopeTransient never caches; every resolution builds a fresh instance.
	ScopeTransient Scope = "transient"

	// ScopeGraph caches one instance per resolution graph: nested
	// resolutions within one top-level call share it, the next top-level
	// call rebuilds it.
	ScopeGraph Scope = "graph"

	// ScopeWeak caches through a non-owning reference. Once no strong owner
	// remains elsewhere the entry reads as absent and the next resolution
	// rebuilds. Register with RegisterWeak.
	ScopeWeak Scope = "weak"
)

// retained reports whether the registry keeps a cache entry for the scope at
// all. Transient instances are never inserted, and graph instances live in
// the resolution's own graph slots instead of the registry cache.
func (s Scope) retained() bool {
	return s != ScopeTransient && s != ScopeGraph
}

// Category declares which storage domain guards an identity's cache slot.
// An identity keeps its category for the lifetime of the registration; see
// CategoryConflictError.
type Category string

const (
	// CategoryShared guards the slot with the registry mutex; resolvable
	// from any goroutine. The default.
	CategoryShared Category = "shared"

	// CategoryPinned places the slot in the environment's single-owner
	// domain: the cache is touched without locks, only ever on the owner
	// goroutine. See Environment.RunPinned.
	CategoryPinned Category = "pinned"
)

// handle is one stored cache entry. fetch yields the instance, or reports it
// absent when a weak entry has lost its referent.
type handle interface {
	fetch() (any, bool)
}

// strongHandle owns its instance for as long as it stays in the cache.
type strongHandle struct {
	value any
}

func (h strongHandle) fetch() (any, bool) { return h.value, true }

// weakHandle holds a weak pointer through a closure built by RegisterWeak,
// which knows the concrete pointer type the type-erased cache cannot name.
type weakHandle struct {
	load func() (any, bool)
}

func (h weakHandle) fetch() (any, bool) { return h.load() }

// strongWrap stores instances for every retaining scope except weak.
func strongWrap(v any) handle { return strongHandle{value: v} }

// weakWrap builds the store function used by RegisterWeak. Instances must be
// *E so the cache can reference them without owning them; once external
// owners release the pointer, fetch reports absence and the slot rebuilds.
func weakWrap[E any]() func(any) handle {
	return func(v any) handle {
		p := weak.Make(v.(*E))
		return weakHandle{load: func() (any, bool) {
			if strong := p.Value(); strong != nil {
				return strong, true
			}
			return nil, false
		}}
	}
}
