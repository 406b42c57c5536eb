package playback

import (
	"github.com/stwalsh4118/demoreel/internal/script"
	"github.com/stwalsh4118/demoreel/internal/sequencer"
)

// Status is the controller's position in its state machine
type Status string

// Controller states
const (
	StatusIdle          Status = "idle"          // Before the first play, or after Stop
	StatusPlaying       Status = "playing"       // A segment schedule is armed
	StatusPaused        Status = "paused"        // Elapsed time frozen, nothing armed
	StatusTransitioning Status = "transitioning" // Swapping segments, never observed by listeners
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusIdle, StatusPlaying, StatusPaused, StatusTransitioning:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if moving from s to next is a legal transition
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusIdle:
		// play, restart and jump all activate a segment
		return next == StatusTransitioning
	case StatusPlaying:
		return next == StatusPaused || next == StatusTransitioning || next == StatusIdle
	case StatusPaused:
		// play resumes in place; restart and jump activate a segment
		return next == StatusPlaying || next == StatusTransitioning || next == StatusIdle
	case StatusTransitioning:
		return next == StatusPlaying
	default:
		return false
	}
}

// Listener receives the controller's notifications. Calls are made on the
// controller's loop; a listener may issue commands from inside a callback.
type Listener interface {
	// OnStep is called once per fired step, in offset order
	OnStep(segmentIndex int, step script.Step)
	// OnProgress is called on the progress cadence while playing
	OnProgress(fraction float64, segmentIndex int)
	// OnSegmentChange is called once per segment activation
	OnSegmentChange(segmentIndex int)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Step          func(segmentIndex int, step script.Step)
	Progress      func(fraction float64, segmentIndex int)
	SegmentChange func(segmentIndex int)
}

// OnStep implements Listener
func (f ListenerFuncs) OnStep(segmentIndex int, step script.Step) {
	if f.Step != nil {
		f.Step(segmentIndex, step)
	}
}

// OnProgress implements Listener
func (f ListenerFuncs) OnProgress(fraction float64, segmentIndex int) {
	if f.Progress != nil {
		f.Progress(fraction, segmentIndex)
	}
}

// OnSegmentChange implements Listener
func (f ListenerFuncs) OnSegmentChange(segmentIndex int) {
	if f.SegmentChange != nil {
		f.SegmentChange(segmentIndex)
	}
}

// State is a snapshot of the controller
type State struct {
	Status         Status  `json:"status"`
	SegmentIndex   int     `json:"segment_index"`
	SegmentID      string  `json:"segment_id"`
	SegmentLabel   string  `json:"segment_label"`
	SegmentCount   int     `json:"segment_count"`
	ElapsedMillis  int64   `json:"elapsed_ms"`
	DurationMillis int64   `json:"duration_ms"`
	Fraction       float64 `json:"fraction"`
	StepsFired     int     `json:"steps_fired"`
	StepCount      int     `json:"step_count"`
	Token          uint64  `json:"token"`
}

// Stats counts controller activity
type Stats struct {
	Commands       uint64          `json:"commands"`
	SegmentChanges uint64          `json:"segment_changes"`
	Sequencer      sequencer.Stats `json:"sequencer"`
}
