package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/demoreel/internal/clock"
	"github.com/stwalsh4118/demoreel/internal/script"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type event struct {
	kind     string
	at       time.Duration
	segment  int
	step     string
	fraction float64
}

// recorder captures every notification with its clock reading
type recorder struct {
	clock  *clock.Manual
	events []event
}

func (r *recorder) now() time.Duration { return r.clock.Now().Sub(epoch) }

func (r *recorder) OnStep(segmentIndex int, step script.Step) {
	r.events = append(r.events, event{kind: "step", at: r.now(), segment: segmentIndex, step: step.ID})
}

func (r *recorder) OnProgress(fraction float64, segmentIndex int) {
	r.events = append(r.events, event{kind: "progress", at: r.now(), segment: segmentIndex, fraction: fraction})
}

func (r *recorder) OnSegmentChange(segmentIndex int) {
	r.events = append(r.events, event{kind: "segment", at: r.now(), segment: segmentIndex})
}

func (r *recorder) only(kind string) []event {
	var out []event
	for _, e := range r.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) stepIDs() []string {
	var ids []string
	for _, e := range r.only("step") {
		ids = append(ids, e.step)
	}
	return ids
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func segment(t *testing.T, id string, duration time.Duration, steps ...script.Step) *script.Segment {
	t.Helper()
	seg, err := script.NewSegment(id, id, duration, steps...)
	require.NoError(t, err)
	return seg
}

func reveal(id string, offset time.Duration) script.Step {
	return script.Step{ID: id, Offset: offset, Kind: script.KindReveal}
}

func timeline(t *testing.T, segments ...*script.Segment) *script.Timeline {
	t.Helper()
	tl, err := script.NewTimeline("test", segments...)
	require.NoError(t, err)
	return tl
}

func newController(t *testing.T, tl *script.Timeline, interval time.Duration) (*Controller, *clock.Manual, *recorder) {
	t.Helper()
	c := clock.NewManual(epoch)
	rec := &recorder{clock: c}
	ctrl, err := New(tl, c, Options{Listener: rec, ProgressInterval: interval})
	require.NoError(t, err)
	return ctrl, c, rec
}

// twoSegments is the 1000ms + 2000ms timeline with one step at 200ms
func twoSegments(t *testing.T) *script.Timeline {
	return timeline(t,
		segment(t, "first", ms(1000), reveal("hello", ms(200))),
		segment(t, "second", ms(2000)),
	)
}

func TestNew_RequiresTimeline(t *testing.T) {
	_, err := New(nil, clock.NewManual(epoch), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoTimeline)
	assert.True(t, script.IsConfigurationError(err))
}

func TestController_IdleUntilCommanded(t *testing.T) {
	ctrl, c, rec := newController(t, twoSegments(t), 0)

	c.Advance(10 * time.Second)

	assert.Equal(t, StatusIdle, ctrl.Status())
	assert.Empty(t, rec.events)
	assert.Zero(t, c.Pending())
}

func TestController_ScenarioAutoAdvanceAndWrap(t *testing.T) {
	ctrl, c, rec := newController(t, twoSegments(t), -1)

	require.NoError(t, ctrl.Play())
	c.Advance(ms(3500))

	assert.Equal(t, []event{
		{kind: "segment", at: 0, segment: 0},
		{kind: "progress", at: 0, segment: 0},
		{kind: "step", at: ms(200), segment: 0, step: "hello"},
		{kind: "segment", at: ms(1000), segment: 1},
		{kind: "progress", at: ms(1000), segment: 1},
		{kind: "segment", at: ms(3000), segment: 0},
		{kind: "progress", at: ms(3000), segment: 0},
		{kind: "step", at: ms(3200), segment: 0, step: "hello"},
	}, rec.events)
	assert.Equal(t, 0, ctrl.SegmentIndex())
}

func TestController_ScenarioJumpCancelsPendingStep(t *testing.T) {
	ctrl, c, rec := newController(t, twoSegments(t), -1)

	require.NoError(t, ctrl.Play())
	c.Advance(ms(50))
	require.NoError(t, ctrl.JumpToSegment(1))

	changes := rec.only("segment")
	require.Len(t, changes, 2)
	assert.Equal(t, event{kind: "segment", at: ms(50), segment: 1}, changes[1])
	assert.Equal(t, 0.0, ctrl.FractionElapsed())

	c.Advance(ms(1500))
	assert.Empty(t, rec.stepIDs(), "segment 0 step must never fire after the jump")
	assert.Equal(t, 1, ctrl.SegmentIndex())

	c.Advance(ms(500))
	changes = rec.only("segment")
	require.Len(t, changes, 3)
	assert.Equal(t, event{kind: "segment", at: ms(2050), segment: 0}, changes[2])
}

func TestController_RestartThenPauseFiresNothing(t *testing.T) {
	ctrl, c, rec := newController(t, twoSegments(t), 0)

	require.NoError(t, ctrl.Play())
	c.Advance(ms(100))
	require.NoError(t, ctrl.Restart())
	require.NoError(t, ctrl.Pause())

	c.Advance(10 * time.Second)

	assert.Empty(t, rec.stepIDs())
	assert.Equal(t, StatusPaused, ctrl.Status())
	assert.Equal(t, 0, ctrl.SegmentIndex())
	assert.Zero(t, c.Pending())
}

func TestController_PauseResumePreservesElapsed(t *testing.T) {
	tl := timeline(t,
		segment(t, "a", ms(1000), reveal("s1", ms(100)), reveal("s2", ms(300)), reveal("s3", ms(600))),
		segment(t, "b", ms(1000)),
	)
	ctrl, c, rec := newController(t, tl, 0)

	require.NoError(t, ctrl.Play())
	c.Advance(ms(300))
	require.NoError(t, ctrl.Pause())
	assert.Equal(t, []string{"s1", "s2"}, rec.stepIDs())

	state := ctrl.State()
	assert.Equal(t, StatusPaused, state.Status)
	assert.Equal(t, int64(300), state.ElapsedMillis)
	assert.Equal(t, 2, state.StepsFired)

	// Nothing moves while paused
	before := len(rec.events)
	c.Advance(5 * time.Second)
	assert.Len(t, rec.events, before)
	assert.InDelta(t, 0.3, ctrl.FractionElapsed(), 1e-9)

	require.NoError(t, ctrl.Play())
	c.Advance(ms(299))
	assert.Equal(t, []string{"s1", "s2"}, rec.stepIDs())

	c.Advance(ms(1))
	assert.Equal(t, []string{"s1", "s2", "s3"}, rec.stepIDs(), "each step fires exactly once across the pause")

	c.Advance(ms(399))
	assert.Equal(t, 0, ctrl.SegmentIndex())
	c.Advance(ms(1))
	assert.Equal(t, 1, ctrl.SegmentIndex(), "advance after exactly 1000ms of playing time")
}

func TestController_PauseImmediatelyAfterStepAtSameOffset(t *testing.T) {
	tl := timeline(t, segment(t, "a", ms(1000), reveal("s1", ms(200)), reveal("s2", ms(200))))
	ctrl, c, rec := newController(t, tl, -1)

	require.NoError(t, ctrl.Play())
	c.Advance(ms(200))
	require.NoError(t, ctrl.Pause())
	require.NoError(t, ctrl.Play())
	c.Advance(ms(700))
	assert.Equal(t, []string{"s1", "s2"}, rec.stepIDs(), "steps fired before the pause are not re-fired")

	c.Advance(ms(300))
	assert.Equal(t, []string{"s1", "s2", "s1", "s2"}, rec.stepIDs(), "a fresh activation fires every step again")
}

func TestController_CyclicIndexAfterCompletions(t *testing.T) {
	durations := []int{100, 250, 400}
	tl := timeline(t,
		segment(t, "a", ms(durations[0])),
		segment(t, "b", ms(durations[1])),
		segment(t, "c", ms(durations[2])),
	)
	ctrl, c, _ := newController(t, tl, -1)
	require.NoError(t, ctrl.Play())

	for n := 1; n <= 10; n++ {
		c.Advance(ms(durations[(n-1)%len(durations)]))
		assert.Equal(t, n%len(durations), ctrl.SegmentIndex(), "after %d completions", n)
	}
}

func TestController_ProgressMonotonicAndResets(t *testing.T) {
	ctrl, c, rec := newController(t, twoSegments(t), ms(30))
	require.NoError(t, ctrl.Play())

	c.Advance(ms(3100))

	var last float64
	currentSegment := -1
	for _, e := range rec.events {
		switch e.kind {
		case "segment":
			currentSegment = e.segment
			last = -1
		case "progress":
			require.Equal(t, currentSegment, e.segment)
			if last < 0 {
				assert.Equal(t, 0.0, e.fraction, "progress restarts at zero on segment change")
			}
			assert.GreaterOrEqual(t, e.fraction, last)
			assert.LessOrEqual(t, e.fraction, 1.0)
			last = e.fraction
		}
	}
	assert.NotEmpty(t, rec.only("progress"))
}

func TestController_NoProgressWhilePaused(t *testing.T) {
	ctrl, c, rec := newController(t, twoSegments(t), ms(10))
	require.NoError(t, ctrl.Play())
	c.Advance(ms(100))
	require.NoError(t, ctrl.Pause())

	count := len(rec.only("progress"))
	c.Advance(time.Second)
	assert.Len(t, rec.only("progress"), count)
}

func TestController_JumpOutOfRange(t *testing.T) {
	ctrl, c, rec := newController(t, twoSegments(t), -1)
	require.NoError(t, ctrl.Play())
	c.Advance(ms(50))
	token := ctrl.State().Token

	for _, index := range []int{-1, 2, 99} {
		err := ctrl.JumpToSegment(index)
		require.Error(t, err)
		assert.True(t, script.IsConfigurationError(err))
		assert.True(t, script.IsSegmentOutOfRange(err))
	}

	assert.Equal(t, token, ctrl.State().Token, "a rejected jump must not disturb the schedule")
	c.Advance(ms(200))
	assert.Equal(t, []string{"hello"}, rec.stepIDs())
}

func TestController_JumpFromIdleAndPaused(t *testing.T) {
	ctrl, c, rec := newController(t, twoSegments(t), -1)

	require.NoError(t, ctrl.JumpToSegment(1))
	assert.Equal(t, StatusPlaying, ctrl.Status())
	assert.Equal(t, 1, ctrl.SegmentIndex())

	require.NoError(t, ctrl.Pause())
	require.NoError(t, ctrl.JumpToSegment(0))
	assert.Equal(t, StatusPlaying, ctrl.Status())

	c.Advance(ms(200))
	assert.Equal(t, []string{"hello"}, rec.stepIDs())
}

func TestController_JumpToSameSegmentRestartsIt(t *testing.T) {
	ctrl, c, rec := newController(t, twoSegments(t), -1)
	require.NoError(t, ctrl.Play())
	c.Advance(ms(500))

	require.NoError(t, ctrl.JumpToSegment(0))
	assert.Len(t, rec.only("segment"), 2)

	c.Advance(ms(200))
	assert.Equal(t, []string{"hello", "hello"}, rec.stepIDs())
}

func TestController_NoOpCommands(t *testing.T) {
	ctrl, c, rec := newController(t, twoSegments(t), -1)

	require.NoError(t, ctrl.Pause())
	assert.Equal(t, StatusIdle, ctrl.Status())

	require.NoError(t, ctrl.Play())
	token := ctrl.State().Token
	require.NoError(t, ctrl.Play())
	assert.Equal(t, token, ctrl.State().Token, "play while playing keeps the schedule")

	require.NoError(t, ctrl.Pause())
	token = ctrl.State().Token
	require.NoError(t, ctrl.Pause())
	assert.Equal(t, token, ctrl.State().Token)

	c.Advance(time.Second)
	assert.Len(t, rec.only("segment"), 1)
}

func TestController_NextPrevious(t *testing.T) {
	tl := timeline(t, segment(t, "a", ms(100)), segment(t, "b", ms(100)), segment(t, "c", ms(100)))
	ctrl, _, _ := newController(t, tl, -1)

	require.NoError(t, ctrl.Previous())
	assert.Equal(t, 2, ctrl.SegmentIndex())
	require.NoError(t, ctrl.Next())
	assert.Equal(t, 0, ctrl.SegmentIndex())
	require.NoError(t, ctrl.Next())
	assert.Equal(t, 1, ctrl.SegmentIndex())
}

func TestController_ListenerCommandSupersedesAdvance(t *testing.T) {
	c := clock.NewManual(epoch)
	var ctrl *Controller
	var steps []string
	listener := ListenerFuncs{
		Step: func(_ int, step script.Step) {
			steps = append(steps, step.ID)
			_ = ctrl.Pause()
		},
	}
	var err error
	ctrl, err = New(twoSegments(t), c, Options{Listener: listener, ProgressInterval: -1})
	require.NoError(t, err)

	require.NoError(t, ctrl.Play())
	c.Advance(5 * time.Second)

	assert.Equal(t, []string{"hello"}, steps)
	assert.Equal(t, StatusPaused, ctrl.Status())
	assert.Equal(t, 0, ctrl.SegmentIndex())
	assert.Equal(t, int64(200), ctrl.State().ElapsedMillis)
}

func TestController_Stop(t *testing.T) {
	ctrl, c, rec := newController(t, twoSegments(t), 0)
	require.NoError(t, ctrl.JumpToSegment(1))
	c.Advance(ms(100))

	ctrl.Stop()
	c.Advance(10 * time.Second)

	assert.Equal(t, StatusIdle, ctrl.Status())
	assert.Equal(t, 0, ctrl.SegmentIndex())
	assert.Len(t, rec.only("segment"), 1)
	assert.Zero(t, c.Pending())

	require.NoError(t, ctrl.Play())
	assert.Equal(t, StatusPlaying, ctrl.Status())
	assert.Equal(t, 0, ctrl.SegmentIndex())
}

func TestController_StateAndStats(t *testing.T) {
	ctrl, c, _ := newController(t, twoSegments(t), -1)
	require.NoError(t, ctrl.Play())
	c.Advance(ms(250))

	state := ctrl.State()
	assert.Equal(t, StatusPlaying, state.Status)
	assert.Equal(t, "first", state.SegmentID)
	assert.Equal(t, 2, state.SegmentCount)
	assert.Equal(t, int64(250), state.ElapsedMillis)
	assert.Equal(t, int64(1000), state.DurationMillis)
	assert.InDelta(t, 0.25, state.Fraction, 1e-9)
	assert.Equal(t, 1, state.StepsFired)
	assert.Equal(t, 1, state.StepCount)

	require.NoError(t, ctrl.JumpToSegment(1))
	stats := ctrl.Stats()
	assert.Equal(t, uint64(2), stats.Commands)
	assert.Equal(t, uint64(2), stats.SegmentChanges)
	assert.Equal(t, uint64(1), stats.Sequencer.StepsFired)
	assert.Equal(t, uint64(1), stats.Sequencer.Cancelled)
}

func TestController_PlaysBuiltinDemo(t *testing.T) {
	ctrl, c, rec := newController(t, script.Clustal(), -1)
	require.NoError(t, ctrl.Play())

	c.Advance(30*time.Second - time.Millisecond)

	total := 0
	for _, seg := range script.Clustal().Segments() {
		total += seg.StepCount()
	}
	assert.Len(t, rec.only("step"), total)
	assert.Equal(t, 2, ctrl.SegmentIndex())
	assert.Len(t, rec.only("segment"), 3)

	c.Advance(time.Millisecond)
	assert.Equal(t, 0, ctrl.SegmentIndex(), "the demo wraps back to the inbox")
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		expected bool
	}{
		{StatusIdle, StatusTransitioning, true},
		{StatusIdle, StatusPaused, false},
		{StatusPlaying, StatusPaused, true},
		{StatusPlaying, StatusTransitioning, true},
		{StatusPaused, StatusPlaying, true},
		{StatusPaused, StatusTransitioning, true},
		{StatusTransitioning, StatusPlaying, true},
		{StatusTransitioning, StatusPaused, false},
		{Status("bogus"), StatusPlaying, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransitionTo(tt.to))
		})
	}
	assert.False(t, Status("bogus").IsValid())
	assert.True(t, StatusTransitioning.IsValid())
}
