package script

import (
	"errors"
	"fmt"
)

// Configuration failure causes. Every ConfigurationError wraps one of these.
var (
	// ErrInvalidStep indicates a step with a bad offset, kind or identifier
	ErrInvalidStep = errors.New("invalid step")

	// ErrInvalidSegment indicates a segment with a bad duration or identifier
	ErrInvalidSegment = errors.New("invalid segment")

	// ErrEmptyTimeline indicates a timeline with no segments
	ErrEmptyTimeline = errors.New("timeline has no segments")

	// ErrDuplicateID indicates two steps or segments sharing an identifier
	ErrDuplicateID = errors.New("duplicate identifier")

	// ErrSegmentOutOfRange indicates a segment index outside the timeline
	ErrSegmentOutOfRange = errors.New("segment index out of range")
)

// ConfigurationError reports a malformed timeline, segment or step. It is
// raised while a script is being built or when a caller addresses a segment
// that does not exist, never while a schedule is running.
type ConfigurationError struct {
	// Field names the offending element, e.g. "segments[1].steps[0].offset"
	Field string
	// Reason is a human readable description of the problem
	Reason string
	// Err is the sentinel cause
	Err error
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configError(cause error, field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
		Err:    cause,
	}
}

// IsConfigurationError checks if the error is, or wraps, a ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsSegmentOutOfRange checks if the error is an out of range segment error
func IsSegmentOutOfRange(err error) bool {
	return errors.Is(err, ErrSegmentOutOfRange)
}

// OutOfRange builds the error returned when index does not address a segment
// in a timeline of count segments
func OutOfRange(index, count int) error {
	return configError(ErrSegmentOutOfRange, "segment_index",
		"index %d outside timeline of %d segments", index, count)
}
