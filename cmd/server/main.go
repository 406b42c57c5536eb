// Command server runs the demoreel HTTP API: stored scripts plus live
// playback sessions streamed over server-sent events.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/stwalsh4118/demoreel/internal/config"
	"github.com/stwalsh4118/demoreel/internal/db"
	"github.com/stwalsh4118/demoreel/internal/logger"
	"github.com/stwalsh4118/demoreel/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", false)
		logger.Log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)

	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			logger.Log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to create database directory")
		}
	}

	database, err := db.New(cfg.Database.Path, db.Options{
		EnableWAL:         cfg.Database.EnableWAL,
		ConnectionTimeout: cfg.Database.ConnectionTimeout,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	sqlDB, err := database.GetSQLDB()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to get database handle")
	}
	if err := db.RunMigrations(sqlDB); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	repos := db.NewRepositories(database)
	if _, err := repos.Scripts.EnsureBuiltin(context.Background(), server.BuiltinScriptName); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to store built-in script")
	}

	fallback, err := server.LoadDefaultScript(cfg.Player)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load default script")
	}

	srv := server.New(cfg, database, fallback)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errChan:
		logger.Log.Error().Err(err).Msg("Server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
