package berth

import (
	"errors"
	"fmt"
	"reflect"
)

// Factory builds an instance of T inside a resolution graph. Nested
// dependencies resolve through r, which carries the caller's chain and
// graph-scoped instances.
type Factory[T any] func(r *Resolution) (T, error)

// KeyedFactory builds an instance of T for the key a keyed resolution
// supplied. The same factory serves every key of the type; each comparable
// key owns its own cache slot.
type KeyedFactory[T any] func(r *Resolution, key any) (T, error)

// BindOption refines a registration.
type BindOption func(*bindConfig)

type bindConfig struct {
	scope    Scope
	category Category
}

// InScope declares the registration's caching policy, ScopeSingleton when
// absent. Values beyond the predefined scopes name independent cache
// partitions reset through ResetScope.
func InScope(s Scope) BindOption {
	return func(c *bindConfig) {
		if s != "" {
			c.scope = s
		}
	}
}

// Pinned places the registration in the environment's single-owner domain:
// its cache slot is lock-free, and resolving it anywhere but on that domain
// is a programming error. See Environment.RunPinned.
func Pinned() BindOption {
	return func(c *bindConfig) { c.category = CategoryPinned }
}

func newBindConfig(opts []BindOption) bindConfig {
	cfg := bindConfig{scope: ScopeSingleton, category: CategoryShared}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Register binds T's identity to factory under the chosen scope.
// Re-registering the same identity replaces the previous binding and
// forgets its cached instance; that is the supported override path for
// tests and mocks.
func Register[T any](e *Environment, factory Factory[T], opts ...BindOption) error {
	id := IdentityOf[T]()
	if factory == nil {
		return &NilFactoryError{Identity: id}
	}
	cfg := newBindConfig(opts)
	if cfg.scope == ScopeWeak {
		return &WeakRegistrationError{Identity: id}
	}
	return e.reg.register(&binding{
		identity: id,
		factory:  func(r *Resolution) (any, error) { return factory(r) },
		scope:    cfg.scope,
		category: cfg.category,
		wrap:     strongWrap,
	})
}

// RegisterKeyed binds a parameterized factory for T: each comparable key
// resolved through ResolveKeyed addresses its own (type, key) cache slot,
// and the factory receives the key in force for the node it builds.
func RegisterKeyed[T any](e *Environment, factory KeyedFactory[T], opts ...BindOption) error {
	id := IdentityOf[T]()
	if factory == nil {
		return &NilFactoryError{Identity: id}
	}
	cfg := newBindConfig(opts)
	if cfg.scope == ScopeWeak {
		return &WeakRegistrationError{Identity: id}
	}
	return e.reg.register(&binding{
		identity: id,
		keyed:    func(r *Resolution, key any) (any, error) { return factory(r, key) },
		scope:    cfg.scope,
		category: cfg.category,
		wrap:     strongWrap,
	})
}

// RegisterWeak binds a factory whose instances are cached through a
// non-owning reference: while a strong owner elsewhere keeps the *E alive,
// resolutions share it; once released, the next resolution rebuilds. The
// pointer shape is what makes a non-owning handle possible, hence the
// dedicated entry point; InScope options are overridden with ScopeWeak.
func RegisterWeak[E any](e *Environment, factory Factory[*E], opts ...BindOption) error {
	id := IdentityOf[*E]()
	if factory == nil {
		return &NilFactoryError{Identity: id}
	}
	cfg := newBindConfig(opts)
	cfg.scope = ScopeWeak
	return e.reg.register(&binding{
		identity: id,
		factory:  func(r *Resolution) (any, error) { return factory(r) },
		scope:    cfg.scope,
		category: cfg.category,
		wrap:     weakWrap[E](),
	})
}

// RegisterInstance binds an already built value as a singleton. The backing
// factory returns the same value every time, so a cache reset brings the
// value back on the next resolution.
func RegisterInstance[T any](e *Environment, value T) error {
	return Register(e, func(*Resolution) (T, error) { return value, nil })
}

// Resolve returns the instance for T's identity, building and caching it
// per the registration's scope. From an *Environment it starts a fresh
// resolution graph; from the *Resolution inside a factory it re-enters the
// graph in flight.
func Resolve[T any](from Resolver) (T, error) {
	return resolveAs[T](from, IdentityOf[T]())
}

// ResolveKeyed resolves the (T, key) cache slot through T's keyed factory.
func ResolveKeyed[T any](from Resolver, key any) (T, error) {
	if key == nil {
		var zero T
		return zero, &InvalidKeyError{Identity: IdentityOf[T]()}
	}
	return resolveAs[T](from, KeyedIdentityOf[T](key))
}

// TryResolve converts NotRegistered into plain absence and leaves every
// other failure to propagate: the optional flavor of Resolve.
func TryResolve[T any](from Resolver) (T, bool, error) {
	v, err := Resolve[T](from)
	if err != nil {
		var zero T
		if errors.Is(err, ErrNotRegistered) {
			return zero, false, nil
		}
		return zero, false, err
	}
	return v, true, nil
}

// MustResolve is Resolve for fail-fast deployments: any resolution failure
// panics. The error-returning form stays the default contract.
func MustResolve[T any](from Resolver) T {
	v, err := Resolve[T](from)
	if err != nil {
		panic(fmt.Sprintf("berth: must resolve %s: %v", IdentityOf[T](), err))
	}
	return v
}

// MustResolveKeyed is ResolveKeyed for fail-fast deployments.
func MustResolveKeyed[T any](from Resolver, key any) T {
	v, err := ResolveKeyed[T](from, key)
	if err != nil {
		panic(fmt.Sprintf("berth: must resolve %s: %v", KeyedIdentityOf[T](key), err))
	}
	return v
}

// ResolvePinned is the same-owner-affinity variant of Resolve: it asserts
// the caller onto the environment's pinned domain before resolving, giving
// misuse a clear failure even when the slot is cached or unregistered.
func ResolvePinned[T any](e *Environment) (T, error) {
	owner := e.reg.ownerID.Load()
	if owner == 0 || goid() != owner {
		panic(fmt.Sprintf("berth: pinned resolution of %s off the owner goroutine; use RunPinned", IdentityOf[T]()))
	}
	return Resolve[T](e)
}

// MustResolvePinned is ResolvePinned for fail-fast deployments.
func MustResolvePinned[T any](e *Environment) T {
	v, err := ResolvePinned[T](e)
	if err != nil {
		panic(fmt.Sprintf("berth: must resolve %s: %v", IdentityOf[T](), err))
	}
	return v
}

// KeyInForce reports the key of the nearest enclosing keyed resolution of
// T, letting deeply nested factories see the parameter an ancestor node was
// requested with.
func KeyInForce[T any](r *Resolution) (any, bool) {
	return r.keyFor(typeOf[T]())
}

func resolveAs[T any](from Resolver, id Identity) (T, error) {
	var zero T
	v, err := from.ResolveAny(id)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, &TypeMismatchError{Identity: id, Expected: typeOf[T](), Got: reflect.TypeOf(v)}
	}
	return out, nil
}
