package berth

import (
	"fmt"
	"reflect"
)

// Identity uniquely names a resolvable service: a type, optionally refined
// by a comparable key for parameterized registrations. Identities compare
// structurally by (type, key); two identities with equal type and equal or
// absent keys address the same cache slot.
type Identity struct {
	typ reflect.Type
	key any
}

// IdentityOf returns the bare identity for T. T may be an interface or a
// concrete type; the identity is derived from T itself, not from any value.
func IdentityOf[T any]() Identity {
	return Identity{typ: typeOf[T]()}
}

// KeyedIdentityOf returns the identity for T refined by key. The key must be
// comparable; resolving an identity with a non-comparable or nil key fails
// with InvalidKeyError.
func KeyedIdentityOf[T any](key any) Identity {
	return Identity{typ: typeOf[T](), key: key}
}

// typeOf yields the stable runtime token for T, including interface types.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Type returns the service type the identity names.
func (id Identity) Type() reflect.Type { return id.typ }

// Key returns the parameter key, or nil for bare identities.
func (id Identity) Key() any { return id.key }

// Keyed reports whether the identity carries a parameter key.
func (id Identity) Keyed() bool { return id.key != nil }

// bare strips the key, yielding the registration slot shared by every key of
// the same type.
func (id Identity) bare() Identity { return Identity{typ: id.typ} }

func (id Identity) String() string {
	if id.typ == nil {
		return "<nil>"
	}
	if id.key != nil {
		return fmt.Sprintf("%s[key=%v]", id.typ, id.key)
	}
	return id.typ.String()
}
