package berth

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

// Sentinels for errors.Is checks. Every typed error below matches its
// sentinel; use errors.As to reach the identities and chains they carry.
var (
	// ErrNotRegistered matches resolutions of identities with no registration.
	ErrNotRegistered = errors.New("service not registered")

	// ErrCircularDependency matches resolutions that revisit an identity
	// already mid-construction.
	ErrCircularDependency = errors.New("circular dependency detected")

	// ErrMaxDepthExceeded matches resolution chains longer than the
	// environment's depth limit.
	ErrMaxDepthExceeded = errors.New("max resolution depth exceeded")

	// ErrFactoryFailed matches failures raised by registered factories.
	ErrFactoryFailed = errors.New("service factory failed")

	// ErrPinnedStopped is returned by RunPinned when the pinned domain was
	// torn down while the call waited.
	ErrPinnedStopped = errors.New("pinned domain stopped")
)

// =============================================================================
// RESOLUTION ERRORS
// =============================================================================

// NotRegisteredError reports a resolve for an identity with no matching
// registration. Bare resolutions of keyed-only registrations and keyed
// resolutions of bare registrations report it too: the requested slot has no
// factory able to serve it.
type NotRegisteredError struct {
	Identity Identity
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("berth: service not registered: %s", e.Identity)
}

func (e *NotRegisteredError) Is(target error) bool { return target == ErrNotRegistered }

// CircularDependencyError reports a resolution chain that revisits an
// identity already mid-construction. Chain holds the in-flight identities in
// resolution order, ending with the repeated one.
type CircularDependencyError struct {
	Identity Identity
	Chain    []Identity
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("berth: circular dependency detected: %s", joinChain(e.Chain))
}

func (e *CircularDependencyError) Is(target error) bool { return target == ErrCircularDependency }

// MaxDepthError reports a resolution chain that grew past the configured
// limit. Chain holds the in-flight identities plus the one that tripped the
// guard.
type MaxDepthError struct {
	Limit int
	Chain []Identity
}

func (e *MaxDepthError) Error() string {
	return fmt.Sprintf("berth: max resolution depth %d exceeded: %s", e.Limit, joinChain(e.Chain))
}

func (e *MaxDepthError) Is(target error) bool { return target == ErrMaxDepthExceeded }

// FactoryError wraps a failure raised by a registered factory. Identity is
// the originating registration, the deepest one whose factory failed, never
// an intermediate caller's; unwrap to reach the factory's own error.
type FactoryError struct {
	Identity Identity
	Err      error
}

func (e *FactoryError) Error() string {
	return fmt.Sprintf("berth: factory for %s failed: %v", e.Identity, e.Err)
}

func (e *FactoryError) Unwrap() error { return e.Err }

func (e *FactoryError) Is(target error) bool { return target == ErrFactoryFailed }

// TypeMismatchError reports a resolved instance that does not satisfy the
// requested type. It can only arise through the erased ResolveAny surface or
// a factory returning a value outside its registered type.
type TypeMismatchError struct {
	Identity Identity
	Expected reflect.Type
	Got      reflect.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("berth: %s: expected %s, got %s", e.Identity, e.Expected, e.Got)
}

// =============================================================================
// REGISTRATION ERRORS
// =============================================================================

// NilFactoryError reports a registration with a nil factory.
type NilFactoryError struct {
	Identity Identity
}

func (e *NilFactoryError) Error() string {
	return fmt.Sprintf("berth: nil factory for %s", e.Identity)
}

// CategoryConflictError reports a re-registration that tries to move an
// identity between the shared and pinned storage categories. Overwriting a
// binding is supported; changing which domain guards its cache slot is not.
type CategoryConflictError struct {
	Identity   Identity
	Registered Category
	Requested  Category
}

func (e *CategoryConflictError) Error() string {
	return fmt.Sprintf("berth: %s already registered as %s, cannot re-register as %s",
		e.Identity, e.Registered, e.Requested)
}

// WeakRegistrationError reports an attempt to register under ScopeWeak
// through a plain registration. Weak storage needs the pointer-typed wrap
// that only RegisterWeak can build.
type WeakRegistrationError struct {
	Identity Identity
}

func (e *WeakRegistrationError) Error() string {
	return fmt.Sprintf("berth: %s: weak scope requires RegisterWeak with a pointer factory", e.Identity)
}

// InvalidKeyError reports a keyed resolution whose key cannot back a cache
// slot: nil, or of a non-comparable type.
type InvalidKeyError struct {
	Identity Identity
	KeyType  reflect.Type
}

func (e *InvalidKeyError) Error() string {
	if e.KeyType == nil {
		return fmt.Sprintf("berth: %s: keyed resolution requires a non-nil key", e.Identity)
	}
	return fmt.Sprintf("berth: %s: key type %s is not comparable", e.Identity, e.KeyType)
}

// =============================================================================
// HELPERS
// =============================================================================

// isResolutionError reports whether err already carries the resolution
// taxonomy. Intermediate factories returning such errors must not have them
// re-wrapped on the way up, or the originating identity would be lost.
func isResolutionError(err error) bool {
	return errors.Is(err, ErrNotRegistered) ||
		errors.Is(err, ErrCircularDependency) ||
		errors.Is(err, ErrMaxDepthExceeded) ||
		errors.Is(err, ErrFactoryFailed)
}

func joinChain(chain []Identity) string {
	parts := make([]string, len(chain))
	for i, id := range chain {
		parts[i] = id.String()
	}
	return strings.Join(parts, " -> ")
}
