// Package progress derives how far the active segment has played.
package progress

import (
	"time"

	"github.com/stwalsh4118/demoreel/internal/clock"
)

// Tracker measures elapsed time within one segment activation. While
// running, elapsed time follows the clock; while paused it is frozen at the
// value captured by Pause.
type Tracker struct {
	clock    clock.Clock
	duration time.Duration
	start    time.Time
	frozen   time.Duration
	running  bool
}

// NewTracker creates an idle tracker reading c
func NewTracker(c clock.Clock) *Tracker {
	return &Tracker{clock: c}
}

// Start begins a new activation of a segment lasting duration, at elapsed zero
func (t *Tracker) Start(duration time.Duration) {
	t.StartAt(duration, 0)
}

// StartAt begins an activation as if elapsed time had already passed
func (t *Tracker) StartAt(duration, elapsed time.Duration) {
	t.duration = duration
	t.start = t.clock.Now().Add(-elapsed)
	t.frozen = 0
	t.running = true
}

// Pause freezes elapsed time and returns the frozen value
func (t *Tracker) Pause() time.Duration {
	if !t.running {
		return t.frozen
	}
	t.frozen = t.clock.Now().Sub(t.start)
	t.running = false
	return t.frozen
}

// Resume continues from the frozen elapsed time
func (t *Tracker) Resume() {
	if t.running {
		return
	}
	t.start = t.clock.Now().Add(-t.frozen)
	t.running = true
}

// Reset returns the tracker to zero without a segment
func (t *Tracker) Reset() {
	t.duration = 0
	t.frozen = 0
	t.running = false
}

// Running reports whether elapsed time is advancing
func (t *Tracker) Running() bool {
	return t.running
}

// Duration returns the duration of the tracked segment
func (t *Tracker) Duration() time.Duration {
	return t.duration
}

// Elapsed returns the raw time spent in the segment. It may exceed the
// duration briefly if polled after nominal completion.
func (t *Tracker) Elapsed() time.Duration {
	if !t.running {
		return t.frozen
	}
	elapsed := t.clock.Now().Sub(t.start)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Remaining returns the time left before nominal completion, never negative
func (t *Tracker) Remaining() time.Duration {
	remaining := t.duration - t.Elapsed()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FractionElapsed returns elapsed over duration clamped to [0, 1]. An
// untracked segment reads 0.
func (t *Tracker) FractionElapsed() float64 {
	if t.duration <= 0 {
		return 0
	}
	fraction := float64(t.Elapsed()) / float64(t.duration)
	switch {
	case fraction < 0:
		return 0
	case fraction > 1:
		return 1
	default:
		return fraction
	}
}
