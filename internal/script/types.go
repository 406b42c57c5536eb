// Package script holds the declarative side of a demo: timed steps grouped
// into segments, and the cyclic timeline of segments. Everything here is
// validated on construction and immutable afterwards; scheduling lives in
// the sequencer and playback packages.
package script

import (
	"fmt"
	"sort"
	"time"
)

// StepKind classifies what a step does to the view
type StepKind string

// Step kinds understood by view adapters
const (
	// KindReveal shows a new element, e.g. a chat bubble or list row
	KindReveal StepKind = "reveal"
	// KindToggle flips a boolean control, e.g. a settings switch
	KindToggle StepKind = "toggle"
	// KindCounterTick moves an animated counter or gauge
	KindCounterTick StepKind = "counter_tick"
	// KindBannerShow displays a transient banner or indicator
	KindBannerShow StepKind = "banner_show"
)

// String returns the string representation of the step kind
func (k StepKind) String() string {
	return string(k)
}

// IsValid checks if the step kind is a known value
func (k StepKind) IsValid() bool {
	switch k {
	case KindReveal, KindToggle, KindCounterTick, KindBannerShow:
		return true
	default:
		return false
	}
}

// Step is a single timed action within a segment. Payload is opaque to the
// core and handed to the view untouched.
type Step struct {
	ID      string        `json:"id"`
	Offset  time.Duration `json:"offset"`
	Kind    StepKind      `json:"kind"`
	Payload any           `json:"payload,omitempty"`
}

// Segment is a duration-bounded group of steps, the unit of auto-advance
type Segment struct {
	id       string
	label    string
	duration time.Duration
	steps    []Step
}

// NewSegment validates and builds a segment. Steps are stably ordered by
// offset, so steps sharing an offset keep their declaration order.
func NewSegment(id, label string, duration time.Duration, steps ...Step) (*Segment, error) {
	if id == "" {
		return nil, configError(ErrInvalidSegment, "id", "segment id is required")
	}
	if duration <= 0 {
		return nil, configError(ErrInvalidSegment, "duration",
			"segment %q duration must be positive, got %v", id, duration)
	}

	seen := make(map[string]struct{}, len(steps))
	ordered := make([]Step, len(steps))
	copy(ordered, steps)

	for i, step := range ordered {
		field := fmt.Sprintf("steps[%d]", i)
		if step.ID == "" {
			ordered[i].ID = fmt.Sprintf("%s-%d", id, i)
			step.ID = ordered[i].ID
		}
		if _, dup := seen[step.ID]; dup {
			return nil, configError(ErrDuplicateID, field+".id",
				"step id %q repeated in segment %q", step.ID, id)
		}
		seen[step.ID] = struct{}{}

		if !step.Kind.IsValid() {
			return nil, configError(ErrInvalidStep, field+".kind",
				"unknown step kind %q", step.Kind)
		}
		if step.Offset < 0 {
			return nil, configError(ErrInvalidStep, field+".offset",
				"offset %v is negative", step.Offset)
		}
		if step.Offset > duration {
			return nil, configError(ErrInvalidStep, field+".offset",
				"offset %v exceeds segment %q duration %v", step.Offset, id, duration)
		}
	}

	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].Offset < ordered[b].Offset
	})

	return &Segment{
		id:       id,
		label:    label,
		duration: duration,
		steps:    ordered,
	}, nil
}

// ID returns the segment identifier
func (s *Segment) ID() string { return s.id }

// Label returns the display label of the segment
func (s *Segment) Label() string { return s.label }

// Duration returns how long the segment plays before auto-advancing
func (s *Segment) Duration() time.Duration { return s.duration }

// Steps returns a copy of the ordered steps
func (s *Segment) Steps() []Step {
	out := make([]Step, len(s.steps))
	copy(out, s.steps)
	return out
}

// StepCount returns the number of steps in the segment
func (s *Segment) StepCount() int { return len(s.steps) }

// Timeline is the cyclic ordered list of segments
type Timeline struct {
	id       string
	segments []*Segment
}

// NewTimeline validates and builds a timeline from at least one segment
func NewTimeline(id string, segments ...*Segment) (*Timeline, error) {
	if len(segments) == 0 {
		return nil, configError(ErrEmptyTimeline, "segments", "timeline %q needs at least one segment", id)
	}

	seen := make(map[string]struct{}, len(segments))
	for i, seg := range segments {
		if seg == nil {
			return nil, configError(ErrInvalidSegment, fmt.Sprintf("segments[%d]", i), "segment is nil")
		}
		if _, dup := seen[seg.id]; dup {
			return nil, configError(ErrDuplicateID, fmt.Sprintf("segments[%d].id", i),
				"segment id %q repeated", seg.id)
		}
		seen[seg.id] = struct{}{}
	}

	return &Timeline{
		id:       id,
		segments: append([]*Segment(nil), segments...),
	}, nil
}

// ID returns the timeline identifier
func (t *Timeline) ID() string { return t.id }

// Len returns the number of segments
func (t *Timeline) Len() int { return len(t.segments) }

// Segment returns the segment at index, or a ConfigurationError when index
// is outside the timeline
func (t *Timeline) Segment(index int) (*Segment, error) {
	if index < 0 || index >= len(t.segments) {
		return nil, OutOfRange(index, len(t.segments))
	}
	return t.segments[index], nil
}

// Segments returns a copy of the segment list
func (t *Timeline) Segments() []*Segment {
	return append([]*Segment(nil), t.segments...)
}

// Next returns the index following index, wrapping past the last segment
func (t *Timeline) Next(index int) int {
	return (index + 1) % len(t.segments)
}

// Previous returns the index preceding index, wrapping before the first segment
func (t *Timeline) Previous(index int) int {
	return (index - 1 + len(t.segments)) % len(t.segments)
}

// TotalDuration returns the length of one full cycle
func (t *Timeline) TotalDuration() time.Duration {
	var total time.Duration
	for _, seg := range t.segments {
		total += seg.duration
	}
	return total
}
