// Package clock provides the logical clock the playback core schedules
// against. Two implementations exist: Real, which arms wall-clock timers and
// hands their expirations to a Loop for serialized execution, and Manual,
// which only moves when told to and runs expirations on the caller's
// goroutine.
package clock

import (
	"time"
)

// Timer is a pending deferred callback
type Timer interface {
	// Stop prevents the callback from being dispatched if it has not been
	// already. It reports whether the call stopped the timer. A callback that
	// was already handed to the loop may still run, so callers guard their
	// side effects with a session token rather than trusting Stop.
	Stop() bool
}

// Clock is a source of time and deferred callbacks
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Real is a wall-clock Clock whose callbacks execute on a Loop
type Real struct {
	loop *Loop
}

// NewReal creates a wall-clock Clock dispatching onto loop
func NewReal(loop *Loop) *Real {
	return &Real{loop: loop}
}

// Now returns the current wall-clock time
func (c *Real) Now() time.Time {
	return time.Now()
}

// AfterFunc arranges for fn to run on the loop once d has elapsed.
// Negative durations are treated as zero, i.e. the next loop turn.
func (c *Real) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	return &realTimer{t: time.AfterFunc(d, func() {
		c.loop.Post(fn)
	})}
}

type realTimer struct {
	t *time.Timer
}

func (r *realTimer) Stop() bool {
	return r.t.Stop()
}
