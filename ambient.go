package berth

import (
	"context"
	"sync"

	"go.uber.org/multierr"
)

// Predefined environment names. Online is the production-like default every
// ambient lookup falls back to.
const (
	Online = "online"
	Test   = "test"
	Dev    = "dev"
)

var (
	envMu sync.RWMutex
	envs  = make(map[string]*Environment)
)

// Env returns the canonical environment for name, creating a default one on
// first use. The name is the handle: callers get whatever object currently
// backs it, so holding "the test environment" needs no particular object
// identity.
func Env(name string) *Environment {
	envMu.RLock()
	e, ok := envs[name]
	envMu.RUnlock()
	if ok {
		return e
	}
	envMu.Lock()
	defer envMu.Unlock()
	if e, ok := envs[name]; ok {
		return e
	}
	e = NewEnvironment(name)
	envs[name] = e
	return e
}

// Install makes e the canonical environment for its name, replacing any
// previous backer. Call it to put a configured environment (custom logger,
// depth limit, observers) behind a well-known name.
func Install(e *Environment) {
	if e == nil {
		return
	}
	envMu.Lock()
	defer envMu.Unlock()
	envs[e.name] = e
}

// Default returns the ambient fallback environment, Online.
func Default() *Environment { return Env(Online) }

type envCtxKey struct{}

// WithEnvironment returns a context whose logical task resolves against e.
// Concurrent tasks carry their own contexts and never observe each other's
// choice; no global state changes.
func WithEnvironment(ctx context.Context, e *Environment) context.Context {
	return context.WithValue(ctx, envCtxKey{}, e)
}

// FromContext returns the environment the context's task runs against,
// falling back to Default when none was set.
func FromContext(ctx context.Context) *Environment {
	if ctx != nil {
		if e, ok := ctx.Value(envCtxKey{}).(*Environment); ok && e != nil {
			return e
		}
	}
	return Default()
}

// ResetAllEnvironments resets every canonical environment, aggregating
// failures. Standalone environments never passed to Install are untouched.
func ResetAllEnvironments(ctx context.Context) error {
	envMu.RLock()
	snapshot := make([]*Environment, 0, len(envs))
	for _, e := range envs {
		snapshot = append(snapshot, e)
	}
	envMu.RUnlock()

	var err error
	for _, e := range snapshot {
		err = multierr.Append(err, e.ResetAll(ctx))
	}
	return err
}
