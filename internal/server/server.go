// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/demoreel/internal/api"
	"github.com/stwalsh4118/demoreel/internal/config"
	"github.com/stwalsh4118/demoreel/internal/db"
	"github.com/stwalsh4118/demoreel/internal/logger"
	"github.com/stwalsh4118/demoreel/internal/middleware"
	"github.com/stwalsh4118/demoreel/internal/session"
)

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	db       *db.DB
	repos    *db.Repositories
	sessions *session.Manager
	fallback api.DefaultScript
	router   *gin.Engine
	server   *http.Server
}

// New creates a new server instance. fallback is played by sessions that
// do not name a stored script.
func New(cfg *config.Config, database *db.DB, fallback api.DefaultScript) *Server {
	return &Server{
		config:   cfg,
		db:       database,
		repos:    db.NewRepositories(database),
		sessions: session.NewManager(cfg.Sessions, cfg.Player),
		fallback: fallback,
	}
}

// Handler returns the router, building it on first use
func (s *Server) Handler() http.Handler {
	if s.router == nil {
		s.setupRouter()
	}
	return s.router
}

// Sessions returns the session manager
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	s.router.Use(middleware.RequestLogger()) // Custom zerolog request logger
	s.router.Use(gin.Recovery())             // Panic recovery
	s.router.Use(cors.Default())             // CORS support (allows all origins)

	apiGroup := s.router.Group("/api")

	api.SetupHealthRoutes(apiGroup, s.db, s.sessions)
	api.SetupScriptRoutes(apiGroup, s.repos.Scripts)
	api.SetupSessionRoutes(apiGroup, s.sessions, s.repos.Scripts, s.fallback)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if s.router == nil {
		s.setupRouter()
	}

	if err := s.sessions.Start(); err != nil {
		return fmt.Errorf("failed to start session manager: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Str("default_script", s.fallback.Name).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	// Stopping sessions first closes every event stream
	s.sessions.Stop()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
