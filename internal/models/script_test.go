package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/demoreel/internal/script"
)

func TestNewScript(t *testing.T) {
	def := script.DefinitionOf("ignored", script.Clustal())

	s, err := NewScript("Clustal tour", def)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, "Clustal tour", s.Name)
	assert.Equal(t, script.ClustalTimelineID, s.TimelineID)
	assert.Equal(t, 3, s.SegmentCount)
	assert.Equal(t, int64(30000), s.DurationMillis)
	assert.False(t, s.CreatedAt.IsZero())

	stored, err := s.ParseDefinition()
	require.NoError(t, err)
	assert.Equal(t, "Clustal tour", stored.Name)
	assert.Equal(t, "ignored", def.Name, "the caller's definition is not modified")

	timeline, err := s.Timeline()
	require.NoError(t, err)
	assert.Equal(t, script.Clustal().TotalDuration(), timeline.TotalDuration())
}

func TestNewScript_RejectsInvalidDefinition(t *testing.T) {
	def := &script.Definition{
		ID: "broken",
		Segments: []script.SegmentDefinition{
			{ID: "a", Label: "A", DurationMillis: 0},
		},
	}

	_, err := NewScript("broken", def)
	require.Error(t, err)
	assert.True(t, script.IsConfigurationError(err))
}

func TestScript_TimelineRejectsCorruptDefinition(t *testing.T) {
	s := &Script{Definition: "{not json"}

	_, err := s.Timeline()
	assert.Error(t, err)
}
