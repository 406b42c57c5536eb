package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/demoreel/internal/models"
	"github.com/stwalsh4118/demoreel/internal/script"
	"gorm.io/gorm"
)

// ScriptRepository handles database operations for stored scripts
type ScriptRepository struct {
	db *DB
}

// NewScriptRepository creates a new script repository
func NewScriptRepository(db *DB) *ScriptRepository {
	return &ScriptRepository{db: db}
}

// Create inserts a new script into the database
func (r *ScriptRepository) Create(ctx context.Context, s *models.Script) error {
	result := r.db.WithContext(ctx).Create(s)
	if result.Error != nil {
		return fmt.Errorf("failed to create script: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a script by its UUID
func (r *ScriptRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Script, error) {
	var s models.Script
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&s)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &s, nil
}

// GetByName retrieves a script by its unique name
func (r *ScriptRepository) GetByName(ctx context.Context, name string) (*models.Script, error) {
	var s models.Script
	result := r.db.WithContext(ctx).Where("name = ?", name).First(&s)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &s, nil
}

// List retrieves scripts newest first with pagination
func (r *ScriptRepository) List(ctx context.Context, limit, offset int) ([]*models.Script, error) {
	var scripts []*models.Script
	query := r.db.WithContext(ctx).Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	result := query.Find(&scripts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", MapGormError(result.Error))
	}
	return scripts, nil
}

// Count returns the total number of stored scripts
func (r *ScriptRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Script{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count scripts: %w", MapGormError(result.Error))
	}
	return count, nil
}

// Replace swaps the definition of an existing script, keeping its ID and
// creation time. The definition is validated before anything is written.
func (r *ScriptRepository) Replace(ctx context.Context, id uuid.UUID, name string, def *script.Definition) (*models.Script, error) {
	next, err := models.NewScript(name, def)
	if err != nil {
		return nil, err
	}

	var updated models.Script
	err = r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id.String()).First(&updated).Error; err != nil {
			return MapGormError(err)
		}

		// Map-based updates so every column is written
		updates := map[string]interface{}{
			"name":          next.Name,
			"timeline_id":   next.TimelineID,
			"segment_count": next.SegmentCount,
			"duration_ms":   next.DurationMillis,
			"definition":    next.Definition,
			"updated_at":    time.Now().UTC(),
		}
		if err := tx.Model(&models.Script{}).Where("id = ?", id.String()).Updates(updates).Error; err != nil {
			return MapGormError(err)
		}
		return tx.Where("id = ?", id.String()).First(&updated).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replace script: %w", err)
	}
	return &updated, nil
}

// Delete deletes a script by its UUID
func (r *ScriptRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.Script{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete script: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureBuiltin stores the built-in demo under name unless a script with
// that name already exists. It returns the stored script either way.
func (r *ScriptRepository) EnsureBuiltin(ctx context.Context, name string) (*models.Script, error) {
	existing, err := r.GetByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	s, err := models.NewScript(name, script.DefinitionOf(name, script.Clustal()))
	if err != nil {
		return nil, err
	}
	if err := r.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}
