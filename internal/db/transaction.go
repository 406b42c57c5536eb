package db

import (
	"context"
	"time"

	"github.com/stwalsh4118/demoreel/internal/logger"
	"gorm.io/gorm"
)

// WithTransaction runs fn in a transaction. fn's error rolls back, a panic
// rolls back and re-panics, and nil commits. The returned error is already
// mapped to the package's sentinel errors.
func (db *DB) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	start := time.Now()

	err := db.DB.WithContext(ctx).Transaction(fn)
	if err != nil {
		logger.Log.Debug().
			Err(err).
			Dur("elapsed", time.Since(start)).
			Msg("Transaction rolled back")
		return MapGormError(err)
	}
	return nil
}
