package berth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test fixtures shared across the suite.

type database struct {
	id         int
	disposed   bool
	disposeErr error
}

func (d *database) Dispose() error {
	d.disposed = true
	return d.disposeErr
}

type apiServer struct {
	db *database
}

type session struct {
	user string
}

func dbFactory(id int) Factory[*database] {
	return func(*Resolution) (*database, error) {
		return &database{id: id}, nil
	}
}

func TestRegister_Success(t *testing.T) {
	env := NewEnvironment("register")

	err := Register(env, dbFactory(1))
	require.NoError(t, err)

	assert.True(t, env.Contains(IdentityOf[*database]()))
}

func TestRegister_NilFactory(t *testing.T) {
	env := NewEnvironment("register")

	err := Register[*database](env, nil)
	require.Error(t, err)

	var nfe *NilFactoryError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, IdentityOf[*database](), nfe.Identity)
}

func TestRegister_OverwriteLastWins(t *testing.T) {
	env := NewEnvironment("register")

	require.NoError(t, Register(env, dbFactory(1)))
	first, err := Resolve[*database](env)
	require.NoError(t, err)
	assert.Equal(t, 1, first.id)

	// Re-registering the same identity replaces the factory and
	// invalidates the cached instance.
	require.NoError(t, Register(env, dbFactory(2)))
	second, err := Resolve[*database](env)
	require.NoError(t, err)
	assert.Equal(t, 2, second.id)
	assert.NotSame(t, first, second)
}

func TestRegister_CategoryConflict(t *testing.T) {
	env := NewEnvironment("register")

	require.NoError(t, Register(env, dbFactory(1)))
	err := Register(env, dbFactory(2), Pinned())
	require.Error(t, err)

	var cce *CategoryConflictError
	require.ErrorAs(t, err, &cce)
	assert.Equal(t, IdentityOf[*database](), cce.Identity)
	assert.Equal(t, CategoryShared, cce.Registered)
	assert.Equal(t, CategoryPinned, cce.Requested)
}

func TestRegister_WeakScopeRejected(t *testing.T) {
	env := NewEnvironment("register")

	err := Register(env, dbFactory(1), InScope(ScopeWeak))
	require.Error(t, err)

	var wre *WeakRegistrationError
	assert.ErrorAs(t, err, &wre)
}

func TestRegisterInstance(t *testing.T) {
	env := NewEnvironment("register")
	db := &database{id: 7}

	require.NoError(t, RegisterInstance(env, db))

	got, err := Resolve[*database](env)
	require.NoError(t, err)
	assert.Same(t, db, got)

	// The instance survives cache resets because the factory
	// returns the same value again.
	require.NoError(t, env.ResetCache(context.Background()))
	again, err := Resolve[*database](env)
	require.NoError(t, err)
	assert.Same(t, db, again)
}

func TestResolve_Singleton(t *testing.T) {
	env := NewEnvironment("resolve")
	builds := 0

	err := Register(env, func(*Resolution) (*database, error) {
		builds++
		return &database{id: builds}, nil
	})
	require.NoError(t, err)

	// First resolve creates the instance.
	first, err := Resolve[*database](env)
	require.NoError(t, err)
	assert.Equal(t, 1, builds)

	// Second resolve returns the cached instance.
	second, err := Resolve[*database](env)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, builds)
}

func TestResolve_NotRegistered(t *testing.T) {
	env := NewEnvironment("resolve")

	_, err := Resolve[*database](env)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRegistered)

	var nre *NotRegisteredError
	require.ErrorAs(t, err, &nre)
	assert.Equal(t, IdentityOf[*database](), nre.Identity)
}

func TestResolve_FactoryError(t *testing.T) {
	env := NewEnvironment("resolve")
	boom := errors.New("connect refused")

	err := Register(env, func(*Resolution) (*database, error) {
		return nil, boom
	})
	require.NoError(t, err)

	_, err = Resolve[*database](env)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFactoryFailed)
	assert.ErrorIs(t, err, boom)

	var fe *FactoryError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, IdentityOf[*database](), fe.Identity)
}

func TestResolve_FailureNotCached(t *testing.T) {
	env := NewEnvironment("resolve")
	calls := 0

	err := Register(env, func(*Resolution) (*database, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("not ready")
		}
		return &database{id: calls}, nil
	})
	require.NoError(t, err)

	_, err = Resolve[*database](env)
	require.Error(t, err)

	// A failed build leaves no cache entry; the next attempt
	// runs the factory again.
	db, err := Resolve[*database](env)
	require.NoError(t, err)
	assert.Equal(t, 2, db.id)
}

func TestResolve_TypeMismatch(t *testing.T) {
	env := NewEnvironment("resolve")

	require.NoError(t, Register(env, dbFactory(1)))

	_, err := resolveAs[*session](env, IdentityOf[*database]())
	require.Error(t, err)

	var tme *TypeMismatchError
	require.ErrorAs(t, err, &tme)
	assert.Equal(t, IdentityOf[*database](), tme.Identity)
}

func TestTryResolve(t *testing.T) {
	env := NewEnvironment("resolve")

	// Absent registration reports ok=false without an error.
	_, ok, err := TryResolve[*database](env)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, Register(env, dbFactory(3)))
	db, ok, err := TryResolve[*database](env)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, db.id)
}

func TestTryResolve_FactoryErrorPropagates(t *testing.T) {
	env := NewEnvironment("resolve")
	boom := errors.New("bad state")

	err := Register(env, func(*Resolution) (*database, error) {
		return nil, boom
	})
	require.NoError(t, err)

	// Only missing registrations are converted to ok=false; real
	// failures surface as errors.
	_, ok, err := TryResolve[*database](env)
	require.Error(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestMustResolve(t *testing.T) {
	env := NewEnvironment("resolve")

	require.NoError(t, Register(env, dbFactory(5)))
	db := MustResolve[*database](env)
	assert.Equal(t, 5, db.id)

	assert.Panics(t, func() {
		MustResolve[*session](env)
	})
}

func TestResolve_DependencyChain(t *testing.T) {
	env := NewEnvironment("resolve")

	require.NoError(t, Register(env, dbFactory(1)))
	err := Register(env, func(r *Resolution) (*apiServer, error) {
		db, err := Resolve[*database](r)
		if err != nil {
			return nil, err
		}
		return &apiServer{db: db}, nil
	})
	require.NoError(t, err)

	srv, err := Resolve[*apiServer](env)
	require.NoError(t, err)
	require.NotNil(t, srv.db)

	// The nested resolve shares the singleton cache.
	db, err := Resolve[*database](env)
	require.NoError(t, err)
	assert.Same(t, srv.db, db)
}
