package berth

// BindingInfo describes one registration and its cache state.
type BindingInfo struct {
	// Identity is the registration slot: bare for plain registrations,
	// shared by every key of a keyed one.
	Identity Identity

	// Scope is the declared caching policy.
	Scope Scope

	// Category is the storage domain guarding the cache slot.
	Category Category

	// Keyed reports whether the registration serves keyed resolutions.
	Keyed bool

	// Cached reports whether at least one live instance sits in the cache
	// for this registration. Pinned entries are only observable from the
	// pinned domain and read false elsewhere; weak entries whose referents
	// were collected read false too.
	Cached bool
}

// Query defines criteria for filtering registrations. Zero-valued fields
// match everything; Keyed and Cached filter only when set.
type Query struct {
	// Scope filters by caching policy, custom partition labels included.
	Scope Scope

	// Category filters by storage domain.
	Category Category

	// Keyed filters keyed (true) or bare (false) registrations.
	Keyed *bool

	// Cached filters registrations with (true) or without (false) a live
	// cache entry.
	Cached *bool
}

// Inspect reports the registration serving id's type, if any.
func (e *Environment) Inspect(id Identity) (BindingInfo, bool) {
	g := e.reg
	g.mu.RLock()
	b, ok := g.bindings[id.bare()]
	g.mu.RUnlock()
	if !ok {
		return BindingInfo{}, false
	}
	return e.info(b), true
}

// Contains reports whether id is resolvable: bare identities need a bare
// registration, keyed identities a keyed one.
func (e *Environment) Contains(id Identity) bool {
	_, ok := e.reg.lookup(id)
	return ok
}

// Identities lists every registered identity, in no particular order.
func (e *Environment) Identities() []Identity {
	g := e.reg
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Identity, 0, len(g.bindings))
	for id := range g.bindings {
		out = append(out, id)
	}
	return out
}

// Query returns info for every registration matching q.
//
// Example:
//
//	// every singleton with a live cached instance
//	cached := true
//	infos := env.Query(berth.Query{Scope: berth.ScopeSingleton, Cached: &cached})
func (e *Environment) Query(q Query) []BindingInfo {
	g := e.reg
	g.mu.RLock()
	snapshot := make([]*binding, 0, len(g.bindings))
	for _, b := range g.bindings {
		snapshot = append(snapshot, b)
	}
	g.mu.RUnlock()

	var results []BindingInfo
	for _, b := range snapshot {
		if q.Scope != "" && b.scope != q.Scope {
			continue
		}
		if q.Category != "" && b.category != q.Category {
			continue
		}
		if q.Keyed != nil && (b.keyed != nil) != *q.Keyed {
			continue
		}
		info := e.info(b)
		if q.Cached != nil && info.Cached != *q.Cached {
			continue
		}
		results = append(results, info)
	}
	return results
}

// FindByScope returns every registration under scope.
func (e *Environment) FindByScope(scope Scope) []BindingInfo {
	return e.Query(Query{Scope: scope})
}

// FindPinned returns every registration in the single-owner domain.
func (e *Environment) FindPinned() []BindingInfo {
	return e.Query(Query{Category: CategoryPinned})
}

// FindCached returns every registration with a live cached instance.
func (e *Environment) FindCached() []BindingInfo {
	cached := true
	return e.Query(Query{Cached: &cached})
}

func (e *Environment) info(b *binding) BindingInfo {
	return BindingInfo{
		Identity: b.identity,
		Scope:    b.scope,
		Category: b.category,
		Keyed:    b.keyed != nil,
		Cached:   e.reg.cachedFor(b),
	}
}
