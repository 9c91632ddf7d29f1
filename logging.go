package berth

import "go.uber.org/zap"

// LogObserver traces resolutions on a zap logger: every node at debug,
// failures at warn. Attach with Use or WithObservers; the graph ID groups
// nested resolutions belonging to one top-level call.
type LogObserver struct {
	log *zap.Logger
}

// NewLogObserver wraps log in a resolution tracer. A nil logger yields a
// no-op observer.
func NewLogObserver(log *zap.Logger) *LogObserver {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogObserver{log: log}
}

func (o *LogObserver) BeforeResolve(r *Resolution, id Identity) error {
	o.log.Debug("resolving service",
		zap.String("environment", r.Environment().Name()),
		zap.String("graph", r.GraphID().String()),
		zap.Int("depth", r.Depth()),
		zap.Stringer("identity", id),
	)
	return nil
}

func (o *LogObserver) AfterResolve(r *Resolution, id Identity, value any, err error) (any, error) {
	if err != nil {
		o.log.Warn("resolution failed",
			zap.String("environment", r.Environment().Name()),
			zap.String("graph", r.GraphID().String()),
			zap.Stringer("identity", id),
			zap.Error(err),
		)
		return value, err
	}
	o.log.Debug("resolved service",
		zap.String("environment", r.Environment().Name()),
		zap.String("graph", r.GraphID().String()),
		zap.Stringer("identity", id),
	)
	return value, err
}
