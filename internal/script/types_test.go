package script

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepKind_IsValid(t *testing.T) {
	tests := []struct {
		kind     StepKind
		expected bool
	}{
		{KindReveal, true},
		{KindToggle, true},
		{KindCounterTick, true},
		{KindBannerShow, true},
		{StepKind("explode"), false},
		{StepKind(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.IsValid())
		})
	}
}

func TestNewSegment_StableOrderByOffset(t *testing.T) {
	seg, err := NewSegment("s", "S", time.Second,
		Step{ID: "late", Offset: 800 * time.Millisecond, Kind: KindReveal},
		Step{ID: "tie-a", Offset: 200 * time.Millisecond, Kind: KindReveal},
		Step{ID: "early", Offset: 0, Kind: KindToggle},
		Step{ID: "tie-b", Offset: 200 * time.Millisecond, Kind: KindBannerShow},
	)
	require.NoError(t, err)

	ids := make([]string, 0, seg.StepCount())
	for _, st := range seg.Steps() {
		ids = append(ids, st.ID)
	}
	assert.Equal(t, []string{"early", "tie-a", "tie-b", "late"}, ids)
}

func TestNewSegment_AssignsMissingIDs(t *testing.T) {
	seg, err := NewSegment("chat", "Chat", time.Second,
		Step{Offset: 0, Kind: KindReveal},
		Step{Offset: 10 * time.Millisecond, Kind: KindReveal},
	)
	require.NoError(t, err)

	steps := seg.Steps()
	assert.Equal(t, "chat-0", steps[0].ID)
	assert.Equal(t, "chat-1", steps[1].ID)
}

func TestNewSegment_Validation(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		duration time.Duration
		steps    []Step
		cause    error
		field    string
	}{
		{"missing id", "", time.Second, nil, ErrInvalidSegment, "id"},
		{"zero duration", "s", 0, nil, ErrInvalidSegment, "duration"},
		{"negative duration", "s", -time.Second, nil, ErrInvalidSegment, "duration"},
		{"negative offset", "s", time.Second, []Step{{ID: "a", Offset: -1, Kind: KindReveal}}, ErrInvalidStep, "steps[0].offset"},
		{"offset past duration", "s", time.Second, []Step{{ID: "a", Offset: 2 * time.Second, Kind: KindReveal}}, ErrInvalidStep, "steps[0].offset"},
		{"unknown kind", "s", time.Second, []Step{{ID: "a", Kind: "wobble"}}, ErrInvalidStep, "steps[0].kind"},
		{"duplicate step", "s", time.Second, []Step{{ID: "a", Kind: KindReveal}, {ID: "a", Kind: KindReveal}}, ErrDuplicateID, "steps[1].id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg, err := NewSegment(tt.id, "label", tt.duration, tt.steps...)
			assert.Nil(t, seg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.cause)
			assert.True(t, IsConfigurationError(err))

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNewSegment_OffsetEqualToDurationAllowed(t *testing.T) {
	seg, err := NewSegment("s", "S", time.Second, Step{ID: "edge", Offset: time.Second, Kind: KindReveal})
	require.NoError(t, err)
	assert.Equal(t, 1, seg.StepCount())
}

func TestSegment_StepsReturnsCopy(t *testing.T) {
	seg, err := NewSegment("s", "S", time.Second, Step{ID: "a", Kind: KindReveal})
	require.NoError(t, err)

	steps := seg.Steps()
	steps[0].ID = "mutated"

	assert.Equal(t, "a", seg.Steps()[0].ID)
}

func TestNewTimeline(t *testing.T) {
	a, _ := NewSegment("a", "A", time.Second)
	b, _ := NewSegment("b", "B", 2*time.Second)

	t.Run("empty", func(t *testing.T) {
		_, err := NewTimeline("t")
		assert.ErrorIs(t, err, ErrEmptyTimeline)
	})

	t.Run("duplicate segment", func(t *testing.T) {
		_, err := NewTimeline("t", a, a)
		assert.ErrorIs(t, err, ErrDuplicateID)
	})

	t.Run("nil segment", func(t *testing.T) {
		_, err := NewTimeline("t", a, nil)
		assert.ErrorIs(t, err, ErrInvalidSegment)
	})

	t.Run("valid", func(t *testing.T) {
		tl, err := NewTimeline("t", a, b)
		require.NoError(t, err)
		assert.Equal(t, 2, tl.Len())
		assert.Equal(t, 3*time.Second, tl.TotalDuration())
	})
}

func TestTimeline_Navigation(t *testing.T) {
	a, _ := NewSegment("a", "A", time.Second)
	b, _ := NewSegment("b", "B", time.Second)
	c, _ := NewSegment("c", "C", time.Second)
	tl, err := NewTimeline("t", a, b, c)
	require.NoError(t, err)

	assert.Equal(t, 1, tl.Next(0))
	assert.Equal(t, 0, tl.Next(2))
	assert.Equal(t, 2, tl.Previous(0))
	assert.Equal(t, 0, tl.Previous(1))

	seg, err := tl.Segment(2)
	require.NoError(t, err)
	assert.Equal(t, "c", seg.ID())

	_, err = tl.Segment(3)
	assert.True(t, IsSegmentOutOfRange(err))
	_, err = tl.Segment(-1)
	assert.True(t, IsSegmentOutOfRange(err))
}

func TestClustal_IsValid(t *testing.T) {
	tl := Clustal()

	require.Equal(t, 3, tl.Len())
	assert.Equal(t, 30*time.Second, tl.TotalDuration())

	labels := make([]string, 0, tl.Len())
	for _, seg := range tl.Segments() {
		labels = append(labels, seg.Label())
		steps := seg.Steps()
		for i := 1; i < len(steps); i++ {
			assert.LessOrEqual(t, steps[i-1].Offset, steps[i].Offset, "segment %s out of order at %d", seg.ID(), i)
		}
	}
	assert.Equal(t, []string{"Inbox", "Live Chat", "AI Settings"}, labels)
}

func TestClustal_CounterClampsAtTarget(t *testing.T) {
	seg, err := Clustal().Segment(2)
	require.NoError(t, err)

	var last map[string]any
	for _, st := range seg.Steps() {
		payload, ok := st.Payload.(map[string]any)
		if ok && st.Kind == KindCounterTick && payload["counter"] == "customers_served" {
			last = payload
		}
	}
	require.NotNil(t, last)
	assert.Equal(t, customersTarget, last["value"])
}
