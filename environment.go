package berth

import (
	"context"

	"go.uber.org/zap"
)

// DefaultMaxDepth bounds resolution chains unless an environment or view
// overrides it.
const DefaultMaxDepth = 100

// Environment is a named, isolated registry and cache pairing. Environments
// with different names never share registrations or cached instances;
// environments with the same name are interchangeable handles (equality is
// by name alone, never by cache contents).
type Environment struct {
	name     string
	maxDepth int
	reg      *registry
}

type envConfig struct {
	maxDepth  int
	logger    *zap.Logger
	observers []Observer
}

// EnvOption configures a new environment.
type EnvOption func(*envConfig)

// WithMaxDepth sets the resolution depth limit, DefaultMaxDepth when
// unset. Non-positive values are ignored.
func WithMaxDepth(n int) EnvOption {
	return func(c *envConfig) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithLogger sets the logger for registration, reset and pinned-domain
// lifecycle events. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) EnvOption {
	return func(c *envConfig) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithObservers attaches resolution observers at construction. More can be
// attached later with Use.
func WithObservers(obs ...Observer) EnvOption {
	return func(c *envConfig) { c.observers = append(c.observers, obs...) }
}

// NewEnvironment creates a standalone environment. Use Env to share one
// canonical environment per name process-wide; standalone environments suit
// tests that want full isolation.
func NewEnvironment(name string, opts ...EnvOption) *Environment {
	cfg := envConfig{maxDepth: DefaultMaxDepth, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	reg := newRegistry(cfg.logger.With(zap.String("environment", name)))
	for _, o := range cfg.observers {
		if o != nil {
			reg.observers.add(o)
		}
	}
	return &Environment{name: name, maxDepth: cfg.maxDepth, reg: reg}
}

// Name returns the environment's name.
func (e *Environment) Name() string { return e.name }

// Equal reports whether both handles name the same environment. Cache and
// registration contents play no part.
func (e *Environment) Equal(o *Environment) bool {
	return e != nil && o != nil && e.name == o.name
}

// MaxDepth returns the depth limit this view resolves under.
func (e *Environment) MaxDepth() int { return e.maxDepth }

// WithMaxDepth returns a view of the environment with a different depth
// limit, sharing the registry and caches. It relaxes or tightens the limit
// for one task without touching other callers of the same environment.
func (e *Environment) WithMaxDepth(n int) *Environment {
	if n <= 0 {
		n = DefaultMaxDepth
	}
	return &Environment{name: e.name, maxDepth: n, reg: e.reg}
}

// Use attaches an observer. All views of the environment share it.
func (e *Environment) Use(o Observer) {
	if o != nil {
		e.reg.observers.add(o)
	}
}

// ResolveAny resolves id in a fresh resolution graph. The generic helpers
// (Resolve, ResolveKeyed, TryResolve, ...) wrap it with type mapping.
func (e *Environment) ResolveAny(id Identity) (any, error) {
	return newResolution(e).ResolveAny(id)
}

// RunPinned executes fn on the environment's single-owner domain, starting
// the domain if needed, and waits for fn to finish. Pinned services resolve
// only from inside fn or from factories it triggers. fn runs as its own
// logical task: resolutions inside it form new graphs.
func (e *Environment) RunPinned(ctx context.Context, fn func()) error {
	return e.reg.ensureStrand().run(ctx, fn)
}

// ResetCache drops every cached instance, keeping registrations. It returns
// once both the shared and the pinned caches are clear, so completion is a
// post-condition, and aggregates Dispose failures from evicted instances.
func (e *Environment) ResetCache(ctx context.Context) error {
	return e.reg.resetCache(ctx, nil)
}

// ResetScope drops only cache entries stored under scope, leaving other
// partitions and all registrations in place. Custom partition labels reset
// the same way: ResetScope(ctx, Scope("session")).
func (e *Environment) ResetScope(ctx context.Context, scope Scope) error {
	return e.reg.resetCache(ctx, &scope)
}

// ResetAll tears the environment down: caches, registrations, and the
// pinned domain. The environment stays usable afterwards; registering a
// pinned service again starts a fresh domain.
func (e *Environment) ResetAll(ctx context.Context) error {
	return e.reg.resetAll(ctx)
}
