// Package sequencer fires the steps of one segment at their offsets and
// signals when the segment's duration has elapsed.
//
// A schedule is a single chained timer: only the next due event is armed at
// any time, and it re-arms for the following one after firing. Steps
// therefore fire in non-decreasing offset order even when the underlying
// timers are imprecise, and completion always comes last.
package sequencer

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/demoreel/internal/clock"
	"github.com/stwalsh4118/demoreel/internal/logger"
	"github.com/stwalsh4118/demoreel/internal/script"
)

// Segment is what the sequencer needs from a segment
type Segment interface {
	ID() string
	Duration() time.Duration
	Steps() []script.Step
}

// Cursor is a resume point within a segment: the index of the first step
// still to fire and the time already spent in the segment
type Cursor struct {
	NextStep int
	Elapsed  time.Duration
}

// Callbacks receive the schedule's events. Either may be nil.
type Callbacks struct {
	OnStep     func(index int, step script.Step)
	OnComplete func()
}

// Stats counts scheduling activity over the sequencer's lifetime
type Stats struct {
	Scheduled   uint64 `json:"scheduled"`
	StepsFired  uint64 `json:"steps_fired"`
	Completions uint64 `json:"completions"`
	Cancelled   uint64 `json:"cancelled"`
	Discarded   uint64 `json:"discarded"`
}

// Sequencer arms segment schedules against a clock
type Sequencer struct {
	clock clock.Clock
	gen   *Generation
	stats Stats
	log   zerolog.Logger
}

// New creates a sequencer. Callbacks fire only while the token they were
// scheduled with is current in gen.
func New(c clock.Clock, gen *Generation) *Sequencer {
	return &Sequencer{
		clock: c,
		gen:   gen,
		log:   logger.With("sequencer"),
	}
}

// Schedule arms the events of seg from the given cursor. A zero cursor
// starts the segment from the beginning. Steps before from.NextStep are
// never fired; the remaining ones fire at offset minus from.Elapsed, and
// completion fires at duration minus from.Elapsed. A segment without steps
// only completes; a segment whose remaining time is zero completes on the
// next tick without firing any step.
func (s *Sequencer) Schedule(seg Segment, token Token, from Cursor, cb Callbacks) *Handle {
	steps := seg.Steps()
	next := from.NextStep
	if next < 0 {
		next = 0
	}
	if next > len(steps) {
		next = len(steps)
	}

	h := &Handle{
		seq:       s,
		token:     token,
		segmentID: seg.ID(),
		steps:     steps,
		duration:  seg.Duration(),
		start:     s.clock.Now().Add(-from.Elapsed),
		next:      next,
		cb:        cb,
	}
	if h.duration <= 0 {
		// Nothing can be due before completion
		h.next = len(steps)
	}

	s.stats.Scheduled++
	s.log.Debug().
		Str("segment_id", h.segmentID).
		Uint64("token", uint64(token)).
		Int("next_step", h.next).
		Int("steps", len(steps)).
		Dur("elapsed", from.Elapsed).
		Dur("duration", h.duration).
		Msg("Segment scheduled")

	h.arm()
	return h
}

// Cancel invalidates every pending callback of h. Once it returns no
// callback of h has an observable effect, even one already queued on the
// loop. Cancelling a nil, finished or already cancelled handle is a no-op.
func (s *Sequencer) Cancel(h *Handle) {
	if h == nil || h.cancelled {
		return
	}
	h.cancelled = true
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	if h.completed {
		return
	}

	s.stats.Cancelled++
	s.log.Debug().
		Str("segment_id", h.segmentID).
		Uint64("token", uint64(h.token)).
		Int("steps_fired", h.next).
		Msg("Segment schedule cancelled")
}

// Stats returns a copy of the activity counters
func (s *Sequencer) Stats() Stats {
	return s.stats
}

// discard records a callback that fired under a stale token. This is the
// expected outcome after every command that reschedules and is not an error.
func (s *Sequencer) discard(h *Handle) {
	s.stats.Discarded++
	s.log.Debug().
		Str("segment_id", h.segmentID).
		Uint64("token", uint64(h.token)).
		Uint64("current_token", uint64(s.gen.Current())).
		Msg("Discarded stale callback")
}

// Handle is one armed segment schedule
type Handle struct {
	seq       *Sequencer
	token     Token
	segmentID string
	steps     []script.Step
	duration  time.Duration
	start     time.Time
	next      int
	timer     clock.Timer
	cb        Callbacks
	cancelled bool
	completed bool
}

// Token returns the token the schedule was armed with
func (h *Handle) Token() Token {
	return h.token
}

// Fired returns how many steps of the segment have fired, counting steps
// skipped by the starting cursor
func (h *Handle) Fired() int {
	return h.next
}

// Active reports whether the schedule can still fire anything
func (h *Handle) Active() bool {
	return !h.cancelled && !h.completed && !h.stale()
}

func (h *Handle) stale() bool {
	return h.cancelled || !h.seq.gen.IsCurrent(h.token)
}

// arm sets the timer for the next due event
func (h *Handle) arm() {
	due := h.duration
	if h.next < len(h.steps) {
		due = h.steps[h.next].Offset
	}
	delay := h.start.Add(due).Sub(h.seq.clock.Now())
	h.timer = h.seq.clock.AfterFunc(delay, h.fire)
}

// fire runs every step that is due, then either re-arms or completes
func (h *Handle) fire() {
	h.timer = nil
	if h.stale() {
		h.seq.discard(h)
		return
	}

	if h.next < len(h.steps) {
		elapsed := h.seq.clock.Now().Sub(h.start)
		for h.next < len(h.steps) && h.steps[h.next].Offset <= elapsed {
			index := h.next
			h.next++
			h.seq.stats.StepsFired++
			if h.cb.OnStep != nil {
				h.cb.OnStep(index, h.steps[index])
			}
			// A listener may have issued a command that superseded us
			if h.stale() {
				return
			}
		}
		h.arm()
		return
	}

	h.completed = true
	h.seq.stats.Completions++
	h.seq.log.Debug().
		Str("segment_id", h.segmentID).
		Uint64("token", uint64(h.token)).
		Msg("Segment duration elapsed")
	if h.cb.OnComplete != nil {
		h.cb.OnComplete()
	}
}
