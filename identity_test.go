package berth

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityOf_StructuralEquality(t *testing.T) {
	assert.Equal(t, IdentityOf[*database](), IdentityOf[*database]())
	assert.NotEqual(t, IdentityOf[*database](), IdentityOf[*session]())

	// Interface and concrete identities are distinct.
	assert.NotEqual(t, IdentityOf[Disposable](), IdentityOf[*database]())
}

func TestKeyedIdentityOf(t *testing.T) {
	a := KeyedIdentityOf[*database]("a")
	b := KeyedIdentityOf[*database]("b")

	assert.Equal(t, a, KeyedIdentityOf[*database]("a"))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, IdentityOf[*database]())

	assert.True(t, a.Keyed())
	assert.False(t, IdentityOf[*database]().Keyed())
	assert.Equal(t, "a", a.Key())
	assert.Equal(t, IdentityOf[*database](), a.bare())
}

func TestIdentity_Type(t *testing.T) {
	id := IdentityOf[*database]()
	assert.Equal(t, reflect.TypeOf(&database{}), id.Type())
}

func TestIdentity_String(t *testing.T) {
	assert.Contains(t, IdentityOf[*database]().String(), "database")

	keyed := KeyedIdentityOf[*database]("primary")
	assert.Contains(t, keyed.String(), "database")
	assert.Contains(t, keyed.String(), "key=primary")
}

func TestResolveAny_ZeroIdentity(t *testing.T) {
	env := NewEnvironment("identity")

	_, err := env.ResolveAny(Identity{})
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestResolveKeyed_IndependentSlots(t *testing.T) {
	env := NewEnvironment("keyed")
	var keys []any

	err := RegisterKeyed(env, func(_ *Resolution, key any) (*database, error) {
		keys = append(keys, key)
		return &database{}, nil
	})
	require.NoError(t, err)

	primary, err := ResolveKeyed[*database](env, "primary")
	require.NoError(t, err)
	replica, err := ResolveKeyed[*database](env, "replica")
	require.NoError(t, err)
	assert.NotSame(t, primary, replica)

	// Each key owns a cache slot.
	again, err := ResolveKeyed[*database](env, "primary")
	require.NoError(t, err)
	assert.Same(t, primary, again)
	assert.Equal(t, []any{"primary", "replica"}, keys)
}

func TestResolveKeyed_NilKey(t *testing.T) {
	env := NewEnvironment("keyed")

	require.NoError(t, RegisterKeyed(env, func(_ *Resolution, _ any) (*database, error) {
		return &database{}, nil
	}))

	_, err := ResolveKeyed[*database](env, nil)
	require.Error(t, err)

	var ike *InvalidKeyError
	assert.ErrorAs(t, err, &ike)
}

func TestResolveKeyed_NonComparableKey(t *testing.T) {
	env := NewEnvironment("keyed")

	require.NoError(t, RegisterKeyed(env, func(_ *Resolution, _ any) (*database, error) {
		return &database{}, nil
	}))

	_, err := ResolveKeyed[*database](env, []string{"not", "hashable"})
	require.Error(t, err)

	var ike *InvalidKeyError
	require.ErrorAs(t, err, &ike)
	assert.Equal(t, reflect.TypeOf([]string{}), ike.KeyType)
}

func TestResolveKeyed_BareRegistrationNotMatched(t *testing.T) {
	env := NewEnvironment("keyed")

	require.NoError(t, Register(env, dbFactory(1)))

	// A plain registration does not answer keyed requests.
	_, err := ResolveKeyed[*database](env, "primary")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestResolve_KeyedRegistrationNeedsKey(t *testing.T) {
	env := NewEnvironment("keyed")

	require.NoError(t, RegisterKeyed(env, func(_ *Resolution, _ any) (*database, error) {
		return &database{}, nil
	}))

	_, err := Resolve[*database](env)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestMustResolveKeyed(t *testing.T) {
	env := NewEnvironment("keyed")

	require.NoError(t, RegisterKeyed(env, func(_ *Resolution, key any) (*database, error) {
		return &database{id: len(key.(string))}, nil
	}))

	db := MustResolveKeyed[*database](env, "abc")
	assert.Equal(t, 3, db.id)

	assert.Panics(t, func() {
		MustResolveKeyed[*session](env, "abc")
	})
}

func TestRegisterKeyed_ScopedSlots(t *testing.T) {
	env := NewEnvironment("keyed")
	builds := 0

	err := RegisterKeyed(env, func(_ *Resolution, _ any) (*database, error) {
		builds++
		return &database{id: builds}, nil
	}, InScope(ScopeTransient))
	require.NoError(t, err)

	first, err := ResolveKeyed[*database](env, "primary")
	require.NoError(t, err)
	second, err := ResolveKeyed[*database](env, "primary")
	require.NoError(t, err)

	// Transient keyed services rebuild on every request.
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, builds)
}
