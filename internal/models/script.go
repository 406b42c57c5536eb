// Package models holds the persisted entities of the script library.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/demoreel/internal/script"
)

// Script is a stored timeline definition. Only the definition is persisted;
// playback state lives in memory with the session that plays it.
type Script struct {
	ID             uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	Name           string    `json:"name" gorm:"type:text;not null;uniqueIndex;column:name"`
	TimelineID     string    `json:"timeline_id" gorm:"type:text;not null;column:timeline_id"`
	SegmentCount   int       `json:"segment_count" gorm:"type:integer;not null;column:segment_count"`
	DurationMillis int64     `json:"duration_ms" gorm:"type:integer;not null;column:duration_ms"`
	Definition     string    `json:"-" gorm:"type:text;not null;column:definition"`
	CreatedAt      time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// NewScript validates def and wraps it in a Script with a generated UUID.
// Invalid definitions fail with the script package's ConfigurationError.
func NewScript(name string, def *script.Definition) (*Script, error) {
	timeline, err := def.Build()
	if err != nil {
		return nil, err
	}

	stored := *def
	stored.Name = name
	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode script definition: %w", err)
	}

	now := time.Now().UTC()
	return &Script{
		ID:             uuid.New(),
		Name:           name,
		TimelineID:     timeline.ID(),
		SegmentCount:   timeline.Len(),
		DurationMillis: timeline.TotalDuration().Milliseconds(),
		Definition:     string(data),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ParseDefinition decodes the stored definition
func (s *Script) ParseDefinition() (*script.Definition, error) {
	return script.ParseJSON([]byte(s.Definition))
}

// Timeline decodes and builds the stored definition
func (s *Script) Timeline() (*script.Timeline, error) {
	def, err := s.ParseDefinition()
	if err != nil {
		return nil, err
	}
	return def.Build()
}
