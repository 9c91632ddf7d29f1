package berth

import "sync"

// Observer receives resolution events for every node of a resolution graph,
// nested resolutions included. BeforeResolve may veto a resolution by
// returning an error; AfterResolve may replace the outcome. Observer errors
// surface to the caller verbatim, outside the resolution taxonomy.
//
// Hooks run outside the registry locks but inside the caller's resolution,
// so they must not resolve services themselves.
type Observer interface {
	// BeforeResolve fires after the guards admit id but before the cache is
	// consulted. The chain does not yet contain id.
	BeforeResolve(r *Resolution, id Identity) error

	// AfterResolve fires once the node's outcome is known, with the value
	// that became observable (nil on failure). Whatever it returns is what
	// the caller sees.
	AfterResolve(r *Resolution, id Identity, value any, err error) (any, error)
}

// FuncObserver adapts plain functions to Observer. Nil fields are skipped.
type FuncObserver struct {
	Before func(r *Resolution, id Identity) error
	After  func(r *Resolution, id Identity, value any, err error) (any, error)
}

func (f FuncObserver) BeforeResolve(r *Resolution, id Identity) error {
	if f.Before == nil {
		return nil
	}
	return f.Before(r, id)
}

func (f FuncObserver) AfterResolve(r *Resolution, id Identity, value any, err error) (any, error) {
	if f.After == nil {
		return value, err
	}
	return f.After(r, id, value, err)
}

// observerChain fans resolution events out to attached observers in
// attachment order.
type observerChain struct {
	mu   sync.RWMutex
	list []Observer
}

func (c *observerChain) add(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append(c.list, o)
}

func (c *observerChain) snapshot() []Observer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.list) == 0 {
		return nil
	}
	out := make([]Observer, len(c.list))
	copy(out, c.list)
	return out
}

func (c *observerChain) before(r *Resolution, id Identity) error {
	for _, o := range c.snapshot() {
		if err := o.BeforeResolve(r, id); err != nil {
			return err
		}
	}
	return nil
}

func (c *observerChain) after(r *Resolution, id Identity, value any, err error) (any, error) {
	for _, o := range c.snapshot() {
		value, err = o.AfterResolve(r, id, value, err)
	}
	return value, err
}
