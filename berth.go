// Package berth is a typed service registry: it maps service identities
// (types, optionally refined by a comparable key) to factories, and caches
// the instances they build according to a declared scope. Named environments
// keep registrations and caches isolated from each other, resolution graphs
// are guarded against cycles and runaway depth, and a single-owner "pinned"
// domain carries services that must stay on one goroutine.
//
// Concurrent first resolutions of the same identity may each run the
// factory, but only one resulting instance ever becomes observable: the
// registry commits under a double-checked lock and discards the losers.
// Factories should therefore be side-effect-light. No lock is held while a
// factory runs, which keeps slow or re-entrant factories from serializing
// unrelated resolutions.
//
// Registering an identity twice replaces the previous binding and forgets
// its cached instance. That is the supported override path for tests and
// mocks, not an error.
package berth

// Resolver is anything a resolution can be started or continued through. An
// Environment opens a fresh resolution graph; a Resolution, handed to
// factories, re-enters the graph already in flight so nested dependencies
// share its chain and its graph-scoped instances.
type Resolver interface {
	ResolveAny(id Identity) (any, error)
}

// Disposable lets cached instances release resources when a reset evicts
// them. Dispose failures are aggregated into the reset's return value.
// Instances discarded as racing-resolution losers, or replaced through
// re-registration, are not disposed.
type Disposable interface {
	Dispose() error
}
