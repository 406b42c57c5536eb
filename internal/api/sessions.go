package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/demoreel/internal/db"
	"github.com/stwalsh4118/demoreel/internal/logger"
	"github.com/stwalsh4118/demoreel/internal/models"
	"github.com/stwalsh4118/demoreel/internal/playback"
	"github.com/stwalsh4118/demoreel/internal/script"
	"github.com/stwalsh4118/demoreel/internal/session"
)

const heartbeatInterval = 15 * time.Second

// sessionManager defines the interface required by SessionHandler
type sessionManager interface {
	Create(scriptID, scriptName string, timeline *script.Timeline) (*session.Session, error)
	Get(id uuid.UUID) (*session.Session, error)
	Remove(id uuid.UUID) error
	List() []*session.Session
}

// scriptGetter looks up stored scripts for new sessions
type scriptGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Script, error)
}

// DefaultScript is played by sessions created without a script ID
type DefaultScript struct {
	Name     string
	Timeline *script.Timeline
}

// CreateSessionRequest represents a request to start a player session
type CreateSessionRequest struct {
	ScriptID string `json:"script_id,omitempty"`
}

// SessionListResponse represents the live sessions
type SessionListResponse struct {
	Sessions []session.Info `json:"sessions"`
}

// CommandResponse carries the state after a playback command
type CommandResponse struct {
	SessionID string         `json:"session_id"`
	Command   string         `json:"command"`
	State     playback.State `json:"state"`
}

// SessionHandler handles player session requests
type SessionHandler struct {
	sessions sessionManager
	scripts  scriptGetter
	fallback DefaultScript
}

// NewSessionHandler creates a new session handler instance
func NewSessionHandler(sessions sessionManager, scripts scriptGetter, fallback DefaultScript) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		scripts:  scripts,
		fallback: fallback,
	}
}

// writeSessionError maps session failures to responses
func writeSessionError(c *gin.Context, err error) {
	switch {
	case script.IsSegmentOutOfRange(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_segment",
			Message: err.Error(),
		})
	case session.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "session_not_found",
			Message: "Session not found",
		})
	case session.IsTooManySessions(err):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:   "too_many_sessions",
			Message: "The maximum number of player sessions is already running",
		})
	case session.IsClosed(err):
		c.JSON(http.StatusGone, ErrorResponse{
			Error:   "session_closed",
			Message: "Session has been stopped",
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{
			Error:   "timeout",
			Message: "Session did not respond in time",
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "session_failed",
			Message: "Session request failed",
		})
	}
}

// lookup parses the :id parameter and finds the session
func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid session ID format",
		})
		return nil, false
	}

	s, err := h.sessions.Get(id)
	if err != nil {
		writeSessionError(c, err)
		return nil, false
	}
	return s, true
}

// CreateSession handles POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	// An empty body plays the default script
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "Invalid request body: " + err.Error(),
			})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	scriptID := ""
	name := h.fallback.Name
	timeline := h.fallback.Timeline

	if req.ScriptID != "" {
		id, err := uuid.Parse(req.ScriptID)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_id",
				Message: "Invalid script ID format",
			})
			return
		}

		stored, err := h.scripts.GetByID(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				c.JSON(http.StatusNotFound, ErrorResponse{
					Error:   "script_not_found",
					Message: "Script not found",
				})
				return
			}
			logger.Log.Error().Err(err).Str("script_id", id.String()).Msg("Failed to load script for session")
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "query_failed",
				Message: "Failed to load script",
			})
			return
		}

		timeline, err = stored.Timeline()
		if err != nil {
			logger.Log.Error().Err(err).Str("script_id", id.String()).Msg("Stored script failed to build")
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "corrupt_script",
				Message: "Stored script could not be built",
			})
			return
		}
		scriptID = stored.ID.String()
		name = stored.Name
	}

	s, err := h.sessions.Create(scriptID, name, timeline)
	if err != nil {
		logger.Log.Warn().Err(err).Str("script_name", name).Msg("Failed to create session")
		writeSessionError(c, err)
		return
	}

	info, err := s.Info(ctx)
	if err != nil {
		writeSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, info)
}

// ListSessions handles GET /api/sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := SessionListResponse{Sessions: make([]session.Info, 0)}
	for _, s := range h.sessions.List() {
		info, err := s.Info(ctx)
		if err != nil {
			// Stopped between List and Info
			continue
		}
		response.Sessions = append(response.Sessions, info)
	}

	c.JSON(http.StatusOK, response)
}

// GetSession handles GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	info, err := s.Info(ctx)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Command returns a handler running cmd against the session in :id
func (h *SessionHandler) Command(cmd session.Command) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := h.lookup(c)
		if !ok {
			return
		}

		index := 0
		if cmd == session.CommandJump {
			var err error
			index, err = strconv.Atoi(c.Param("index"))
			if err != nil {
				c.JSON(http.StatusBadRequest, ErrorResponse{
					Error:   "invalid_index",
					Message: "Segment index must be an integer",
				})
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		state, err := s.Execute(ctx, cmd, index)
		if err != nil {
			logger.Log.Debug().
				Err(err).
				Str("session_id", s.ID().String()).
				Str("command", string(cmd)).
				Msg("Playback command rejected")
			writeSessionError(c, err)
			return
		}

		c.JSON(http.StatusOK, CommandResponse{
			SessionID: s.ID().String(),
			Command:   string(cmd),
			State:     state,
		})
	}
}

// StreamEvents handles GET /api/sessions/:id/events as Server-Sent Events
func (h *SessionHandler) StreamEvents(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	sub, err := s.Subscribe(ctx)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	defer s.Unsubscribe(sub)

	logger.Log.Info().
		Str("session_id", s.ID().String()).
		Str("client_ip", c.ClientIP()).
		Msg("Event stream opened")

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e, open := <-sub.Events():
			if !open {
				return false
			}
			c.SSEvent(e.Type.String(), e)
			return true
		case now := <-heartbeat.C:
			c.SSEvent("ping", gin.H{"at": now.UTC()})
			return true
		}
	})

	logger.Log.Info().
		Str("session_id", s.ID().String()).
		Msg("Event stream closed")
}

// DeleteSession handles DELETE /api/sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid session ID format",
		})
		return
	}

	if err := h.sessions.Remove(id); err != nil {
		writeSessionError(c, err)
		return
	}

	logger.Log.Info().Str("session_id", id.String()).Msg("Session removed")
	c.JSON(http.StatusOK, DeleteResponse{Message: "Session stopped"})
}

// SetupSessionRoutes registers player session routes
func SetupSessionRoutes(apiGroup *gin.RouterGroup, sessions sessionManager, scripts scriptGetter, fallback DefaultScript) {
	handler := NewSessionHandler(sessions, scripts, fallback)

	apiGroup.POST("/sessions", handler.CreateSession)
	apiGroup.GET("/sessions", handler.ListSessions)
	apiGroup.GET("/sessions/:id", handler.GetSession)
	apiGroup.DELETE("/sessions/:id", handler.DeleteSession)
	apiGroup.GET("/sessions/:id/events", handler.StreamEvents)

	apiGroup.POST("/sessions/:id/play", handler.Command(session.CommandPlay))
	apiGroup.POST("/sessions/:id/pause", handler.Command(session.CommandPause))
	apiGroup.POST("/sessions/:id/restart", handler.Command(session.CommandRestart))
	apiGroup.POST("/sessions/:id/next", handler.Command(session.CommandNext))
	apiGroup.POST("/sessions/:id/previous", handler.Command(session.CommandPrevious))
	apiGroup.POST("/sessions/:id/jump/:index", handler.Command(session.CommandJump))
}
