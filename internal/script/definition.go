package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// maxMillis is the largest millisecond count that fits in a time.Duration
const maxMillis = math.MaxInt64 / int64(time.Millisecond)

// Definition is the serializable form of a timeline. Offsets and durations
// are integer milliseconds so script files stay readable.
type Definition struct {
	ID       string              `json:"id" yaml:"id" toml:"id"`
	Name     string              `json:"name" yaml:"name" toml:"name"`
	Segments []SegmentDefinition `json:"segments" yaml:"segments" toml:"segments"`
}

// SegmentDefinition is the serializable form of a segment
type SegmentDefinition struct {
	ID             string           `json:"id" yaml:"id" toml:"id"`
	Label          string           `json:"label" yaml:"label" toml:"label"`
	DurationMillis int64            `json:"duration_ms" yaml:"duration_ms" toml:"duration_ms"`
	Steps          []StepDefinition `json:"steps" yaml:"steps" toml:"steps"`
}

// StepDefinition is the serializable form of a step. Payload is carried
// through to the view as decoded, map keys keep their case.
type StepDefinition struct {
	ID           string `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`
	OffsetMillis int64  `json:"offset_ms" yaml:"offset_ms" toml:"offset_ms"`
	Kind         string `json:"kind" yaml:"kind" toml:"kind"`
	Payload      any    `json:"payload,omitempty" yaml:"payload,omitempty" toml:"payload,omitempty"`
}

// Build validates the definition and produces a Timeline. Field paths in the
// returned ConfigurationError are rooted at the definition, e.g.
// "segments[2].steps[0].offset".
func (d *Definition) Build() (*Timeline, error) {
	if len(d.Segments) == 0 {
		return nil, configError(ErrEmptyTimeline, "segments", "script %q defines no segments", d.ID)
	}

	segments := make([]*Segment, 0, len(d.Segments))
	for i, sd := range d.Segments {
		if err := checkMillis(sd.DurationMillis, fmt.Sprintf("segments[%d].duration_ms", i), ErrInvalidSegment); err != nil {
			return nil, err
		}

		steps := make([]Step, 0, len(sd.Steps))
		for j, st := range sd.Steps {
			if err := checkMillis(st.OffsetMillis, fmt.Sprintf("segments[%d].steps[%d].offset_ms", i, j), ErrInvalidStep); err != nil {
				return nil, err
			}
			steps = append(steps, Step{
				ID:      st.ID,
				Offset:  time.Duration(st.OffsetMillis) * time.Millisecond,
				Kind:    StepKind(st.Kind),
				Payload: st.Payload,
			})
		}

		seg, err := NewSegment(sd.ID, sd.Label, time.Duration(sd.DurationMillis)*time.Millisecond, steps...)
		if err != nil {
			return nil, prefixField(err, fmt.Sprintf("segments[%d]", i))
		}
		segments = append(segments, seg)
	}

	return NewTimeline(d.ID, segments...)
}

// DefinitionOf converts a timeline back to its serializable form
func DefinitionOf(name string, t *Timeline) *Definition {
	def := &Definition{
		ID:       t.ID(),
		Name:     name,
		Segments: make([]SegmentDefinition, 0, t.Len()),
	}
	for _, seg := range t.segments {
		sd := SegmentDefinition{
			ID:             seg.id,
			Label:          seg.label,
			DurationMillis: seg.duration.Milliseconds(),
			Steps:          make([]StepDefinition, 0, len(seg.steps)),
		}
		for _, st := range seg.steps {
			sd.Steps = append(sd.Steps, StepDefinition{
				ID:           st.ID,
				OffsetMillis: st.Offset.Milliseconds(),
				Kind:         st.Kind.String(),
				Payload:      st.Payload,
			})
		}
		def.Segments = append(def.Segments, sd)
	}
	return def
}

// ParseJSON decodes a JSON encoded definition
func ParseJSON(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to decode script definition: %w", err)
	}
	return &def, nil
}

// LoadFile reads a script definition from a YAML, JSON or TOML file and
// builds it. The format is chosen from the file extension.
func LoadFile(path string) (*Timeline, *Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read script file %s: %w", path, err)
	}

	var def Definition
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &def)
	case ".toml":
		err = toml.Unmarshal(data, &def)
	case ".json":
		err = json.Unmarshal(data, &def)
	default:
		return nil, nil, fmt.Errorf("unsupported script file type %q: %s", ext, path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode script file %s: %w", path, err)
	}

	timeline, err := def.Build()
	if err != nil {
		return nil, nil, err
	}
	return timeline, &def, nil
}

func checkMillis(ms int64, field string, cause error) error {
	if ms > maxMillis || ms < -maxMillis {
		return configError(cause, field, "%dms does not fit in a duration", ms)
	}
	return nil
}

func prefixField(err error, prefix string) error {
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		return err
	}
	field := prefix
	if cfgErr.Field != "" {
		field = prefix + "." + cfgErr.Field
	}
	return &ConfigurationError{Field: field, Reason: cfgErr.Reason, Err: cfgErr.Err}
}
