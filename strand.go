package berth

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// goid returns the current goroutine ID, parsed from the runtime stack
// header. Used to assert ownership of the pinned domain; pinned cache slots
// skip locking precisely because only one goroutine ever touches them.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	idField := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))[0]
	id, _ := strconv.ParseInt(idField, 10, 64)
	return id
}

// strand is a single-goroutine execution domain. It serializes every job
// onto one goroutine, whose identity backs the pinned-cache ownership
// assertions.
type strand struct {
	jobs chan func()
	id   atomic.Int64
	quit chan struct{}
	stop sync.Once
}

func newStrand() *strand {
	s := &strand{
		jobs: make(chan func()),
		quit: make(chan struct{}),
	}
	ready := make(chan struct{})
	go func() {
		s.id.Store(goid())
		close(ready)
		for {
			select {
			case fn := <-s.jobs:
				fn()
			case <-s.quit:
				return
			}
		}
	}()
	<-ready
	return s
}

// owns reports whether the caller runs on the strand goroutine.
func (s *strand) owns() bool { return goid() == s.id.Load() }

// run executes fn on the strand goroutine and waits for it to finish.
// Called from the strand itself it runs fn inline, so strand code can
// re-enter without deadlocking. A nil error means fn has completed; ctx
// cancellation abandons the wait but cannot stop a job already running.
func (s *strand) run(ctx context.Context, fn func()) error {
	if s.owns() {
		fn()
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan struct{})
	job := func() {
		defer close(done)
		fn()
	}
	select {
	case s.jobs <- job:
	case <-s.quit:
		return ErrPinnedStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops the strand goroutine. Jobs already picked up finish; waiting
// run calls that have not handed their job over fail with ErrPinnedStopped.
func (s *strand) close() {
	s.stop.Do(func() { close(s.quit) })
}
