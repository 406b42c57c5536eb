// Package playback drives a timeline: it activates segments, arms their
// schedules, advances when a segment's duration elapses, and reacts to
// play, pause, restart and jump commands.
//
// Every command and every self-triggered advance begins by bumping the
// session token and cancelling the active schedule, so at most one schedule
// is live per controller and callbacks from an earlier activation are
// discarded when they fire. A Controller is not safe for concurrent use;
// drive it from a single goroutine, normally a clock.Loop.
package playback

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/demoreel/internal/clock"
	"github.com/stwalsh4118/demoreel/internal/logger"
	"github.com/stwalsh4118/demoreel/internal/progress"
	"github.com/stwalsh4118/demoreel/internal/script"
	"github.com/stwalsh4118/demoreel/internal/sequencer"
)

// DefaultProgressInterval is the progress cadence used when none is given,
// roughly three animation frames
const DefaultProgressInterval = 50 * time.Millisecond

// ErrNoTimeline is returned when a controller is built without a timeline
var ErrNoTimeline = errors.New("timeline is required")

// Options configure a Controller
type Options struct {
	// Listener receives notifications; nil discards them
	Listener Listener
	// ProgressInterval is the OnProgress cadence while playing. Zero selects
	// DefaultProgressInterval; a negative value disables progress ticks.
	ProgressInterval time.Duration
}

// Controller is the playback state machine for one timeline
type Controller struct {
	timeline *script.Timeline
	clock    clock.Clock
	gen      *sequencer.Generation
	seq      *sequencer.Sequencer
	tracker  *progress.Tracker
	listener Listener
	interval time.Duration
	log      zerolog.Logger

	status        Status
	index         int
	handle        *sequencer.Handle
	fired         int
	progressTimer clock.Timer

	commands       uint64
	segmentChanges uint64
}

// New creates an idle controller. Nothing is scheduled until a command
// arrives.
func New(timeline *script.Timeline, c clock.Clock, opts Options) (*Controller, error) {
	if timeline == nil {
		return nil, &script.ConfigurationError{Field: "timeline", Reason: "timeline is required", Err: ErrNoTimeline}
	}

	listener := opts.Listener
	if listener == nil {
		listener = ListenerFuncs{}
	}
	interval := opts.ProgressInterval
	if interval == 0 {
		interval = DefaultProgressInterval
	}

	gen := &sequencer.Generation{}
	return &Controller{
		timeline: timeline,
		clock:    c,
		gen:      gen,
		seq:      sequencer.New(c, gen),
		tracker:  progress.NewTracker(c),
		listener: listener,
		interval: interval,
		log:      logger.With("playback").With().Str("timeline_id", timeline.ID()).Logger(),
		status:   StatusIdle,
	}, nil
}

// Timeline returns the timeline being played
func (c *Controller) Timeline() *script.Timeline {
	return c.timeline
}

// Status returns the current state machine status
func (c *Controller) Status() Status {
	return c.status
}

// SegmentIndex returns the index of the active segment
func (c *Controller) SegmentIndex() int {
	return c.index
}

// FractionElapsed returns the active segment's progress in [0, 1]
func (c *Controller) FractionElapsed() float64 {
	return c.tracker.FractionElapsed()
}

// Play starts playback from Idle at the current segment, or resumes from
// Paused. Resuming re-arms only the steps that had not fired before the
// pause, offset by the frozen elapsed time. Play while playing is a no-op.
func (c *Controller) Play() error {
	c.commands++

	switch c.status {
	case StatusIdle:
		c.log.Info().Int("segment_index", c.index).Msg("Playback started")
		c.activate(c.index)
	case StatusPaused:
		c.resume()
	default:
		c.log.Debug().Str("status", c.status.String()).Msg("Play ignored")
	}
	return nil
}

// Pause freezes playback. Pending step and advance callbacks are cancelled
// and elapsed time is captured. Pause when not playing is a no-op.
func (c *Controller) Pause() error {
	c.commands++

	if c.status != StatusPlaying {
		c.log.Debug().Str("status", c.status.String()).Msg("Pause ignored")
		return nil
	}

	h := c.handle
	c.invalidate()
	if h != nil {
		c.fired = h.Fired()
	}
	elapsed := c.tracker.Pause()
	c.setStatus(StatusPaused)

	c.log.Info().
		Int("segment_index", c.index).
		Dur("elapsed", elapsed).
		Int("steps_fired", c.fired).
		Msg("Playback paused")
	return nil
}

// Restart plays segment 0 from the beginning, whatever the current state
func (c *Controller) Restart() error {
	c.commands++
	c.log.Info().Msg("Playback restarted")
	c.activate(0)
	return nil
}

// JumpToSegment plays the segment at index from the beginning. An index
// outside the timeline fails with a ConfigurationError and leaves the
// controller untouched.
func (c *Controller) JumpToSegment(index int) error {
	c.commands++

	if _, err := c.timeline.Segment(index); err != nil {
		c.log.Warn().
			Int("segment_index", index).
			Int("segment_count", c.timeline.Len()).
			Msg("Jump rejected: segment out of range")
		return err
	}

	c.log.Info().Int("from", c.index).Int("to", index).Msg("Jumping to segment")
	c.activate(index)
	return nil
}

// Next jumps to the segment after the active one, wrapping at the end
func (c *Controller) Next() error {
	return c.JumpToSegment(c.timeline.Next(c.index))
}

// Previous jumps to the segment before the active one, wrapping at the start
func (c *Controller) Previous() error {
	return c.JumpToSegment(c.timeline.Previous(c.index))
}

// Stop cancels everything and returns the controller to Idle at segment 0.
// It is the teardown for a view that goes away.
func (c *Controller) Stop() {
	if c.status == StatusIdle {
		return
	}
	c.commands++
	c.invalidate()
	c.tracker.Reset()
	c.index = 0
	c.fired = 0
	c.setStatus(StatusIdle)
	c.log.Info().Msg("Playback stopped")
}

// State returns a snapshot of the controller
func (c *Controller) State() State {
	seg, _ := c.timeline.Segment(c.index)

	fired := c.fired
	if c.status == StatusPlaying && c.handle != nil {
		fired = c.handle.Fired()
	}

	elapsed := c.tracker.Elapsed()
	if d := c.tracker.Duration(); elapsed > d {
		elapsed = d
	}

	return State{
		Status:         c.status,
		SegmentIndex:   c.index,
		SegmentID:      seg.ID(),
		SegmentLabel:   seg.Label(),
		SegmentCount:   c.timeline.Len(),
		ElapsedMillis:  elapsed.Milliseconds(),
		DurationMillis: seg.Duration().Milliseconds(),
		Fraction:       c.tracker.FractionElapsed(),
		StepsFired:     fired,
		StepCount:      seg.StepCount(),
		Token:          uint64(c.gen.Current()),
	}
}

// Stats returns activity counters
func (c *Controller) Stats() Stats {
	return Stats{
		Commands:       c.commands,
		SegmentChanges: c.segmentChanges,
		Sequencer:      c.seq.Stats(),
	}
}

// invalidate bumps the session token and tears down everything armed under
// the previous one. It returns the new token.
func (c *Controller) invalidate() sequencer.Token {
	token := c.gen.Bump()
	c.seq.Cancel(c.handle)
	c.handle = nil
	if c.progressTimer != nil {
		c.progressTimer.Stop()
		c.progressTimer = nil
	}
	return token
}

// activate makes index the active segment at elapsed zero and arms its
// schedule. The listener is told after the schedule is armed, so a command
// issued from OnSegmentChange supersedes it cleanly.
func (c *Controller) activate(index int) {
	token := c.invalidate()
	seg, err := c.timeline.Segment(index)
	if err != nil {
		// Callers validate; wrap-around cannot leave the timeline
		c.log.Error().Err(err).Int("segment_index", index).Msg("Refusing to activate segment")
		return
	}

	c.setStatus(StatusTransitioning)
	c.index = index
	c.fired = 0
	c.tracker.Start(seg.Duration())
	c.handle = c.seq.Schedule(seg, token, sequencer.Cursor{}, c.callbacks(token))
	c.setStatus(StatusPlaying)
	c.armProgress(token)
	c.segmentChanges++

	c.log.Debug().
		Int("segment_index", index).
		Str("segment_id", seg.ID()).
		Uint64("token", uint64(token)).
		Msg("Segment activated")

	c.listener.OnSegmentChange(index)
	if c.gen.IsCurrent(token) {
		c.listener.OnProgress(0, index)
	}
}

// resume re-arms the rest of the paused segment under a fresh token
func (c *Controller) resume() {
	token := c.invalidate()
	seg, _ := c.timeline.Segment(c.index)

	c.tracker.Resume()
	elapsed := c.tracker.Elapsed()
	c.handle = c.seq.Schedule(seg, token, sequencer.Cursor{NextStep: c.fired, Elapsed: elapsed}, c.callbacks(token))
	c.setStatus(StatusPlaying)
	c.armProgress(token)

	c.log.Info().
		Int("segment_index", c.index).
		Dur("elapsed", elapsed).
		Int("steps_remaining", seg.StepCount()-c.fired).
		Msg("Playback resumed")
}

func (c *Controller) callbacks(token sequencer.Token) sequencer.Callbacks {
	return sequencer.Callbacks{
		OnStep: func(_ int, step script.Step) {
			if !c.live(token) {
				return
			}
			c.listener.OnStep(c.index, step)
		},
		OnComplete: func() {
			if !c.live(token) {
				return
			}
			c.advance()
		},
	}
}

// advance moves to the next segment once the active one's duration has
// elapsed. Duration is authoritative: it does not wait for steps.
func (c *Controller) advance() {
	next := c.timeline.Next(c.index)
	c.log.Debug().Int("from", c.index).Int("to", next).Msg("Segment complete, advancing")
	c.activate(next)
}

func (c *Controller) armProgress(token sequencer.Token) {
	if c.interval < 0 {
		return
	}
	c.progressTimer = c.clock.AfterFunc(c.interval, func() {
		if !c.live(token) {
			return
		}
		c.progressTimer = nil
		c.listener.OnProgress(c.tracker.FractionElapsed(), c.index)
		if c.live(token) {
			c.armProgress(token)
		}
	})
}

// live reports whether a callback stamped with token may act
func (c *Controller) live(token sequencer.Token) bool {
	return c.status == StatusPlaying && c.gen.IsCurrent(token)
}

func (c *Controller) setStatus(next Status) {
	if c.status == next {
		return
	}
	if !c.status.CanTransitionTo(next) {
		c.log.Error().
			Str("from", c.status.String()).
			Str("to", next.String()).
			Msg("Unexpected playback state transition")
	}
	c.status = next
}
