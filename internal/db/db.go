// Package db provides the SQLite-backed script library: connection setup,
// embedded schema migrations, and repositories.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	maxOpenConns             = 25
	maxIdleConns             = 5
	connMaxLifetime          = 5 * time.Minute
	defaultConnectionTimeout = 5 * time.Second
	memoryPath               = ":memory:"
)

// Options tune how the database is opened
type Options struct {
	// EnableWAL switches the journal to write-ahead logging
	EnableWAL bool
	// ConnectionTimeout bounds the initial ping
	ConnectionTimeout time.Duration
}

// DB wraps a GORM database connection
type DB struct {
	*gorm.DB
}

// New creates a new database connection with GORM.
// dbPath is the SQLite database file, or ":memory:" for a private
// in-memory database (used by tests).
func New(dbPath string, opts Options) (*DB, error) {
	params := []string{"_foreign_keys=on"}
	if opts.EnableWAL && dbPath != memoryPath {
		params = append(params, "_journal_mode=WAL")
	}
	dsn := fmt.Sprintf("%s?%s", dbPath, strings.Join(params, "&"))

	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		// Disable default transaction for better performance
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if dbPath == memoryPath {
		// Every connection to :memory: opens a fresh database
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxOpenConns(maxOpenConns)
		sqlDB.SetMaxIdleConns(maxIdleConns)
		sqlDB.SetConnMaxLifetime(connMaxLifetime)
	}

	timeout := opts.ConnectionTimeout
	if timeout <= 0 {
		timeout = defaultConnectionTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: gormDB}, nil
}

// Health checks database connectivity
func (db *DB) Health(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// GetSQLDB returns the underlying sql.DB for migrations
func (db *DB) GetSQLDB() (*sql.DB, error) {
	return db.DB.DB()
}
