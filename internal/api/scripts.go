package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/demoreel/internal/db"
	"github.com/stwalsh4118/demoreel/internal/logger"
	"github.com/stwalsh4118/demoreel/internal/models"
	"github.com/stwalsh4118/demoreel/internal/script"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// scriptStore defines the repository operations ScriptHandler needs
type scriptStore interface {
	Create(ctx context.Context, s *models.Script) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Script, error)
	List(ctx context.Context, limit, offset int) ([]*models.Script, error)
	Count(ctx context.Context) (int64, error)
	Replace(ctx context.Context, id uuid.UUID, name string, def *script.Definition) (*models.Script, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Request/Response DTOs

// ScriptRequest represents a request to store or replace a script
type ScriptRequest struct {
	Name       string             `json:"name" binding:"required,min=1,max=255"`
	Definition *script.Definition `json:"definition" binding:"required"`
}

// ScriptResponse represents a stored script in API responses
type ScriptResponse struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	TimelineID     string             `json:"timeline_id"`
	SegmentCount   int                `json:"segment_count"`
	DurationMillis int64              `json:"duration_ms"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	Definition     *script.Definition `json:"definition,omitempty"`
}

// ScriptListResponse represents a paginated list of scripts
type ScriptListResponse struct {
	Items  []*ScriptResponse `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// ScriptHandler handles script library requests
type ScriptHandler struct {
	scripts scriptStore
}

// NewScriptHandler creates a new script handler instance
func NewScriptHandler(scripts scriptStore) *ScriptHandler {
	return &ScriptHandler{scripts: scripts}
}

func toScriptResponse(s *models.Script) *ScriptResponse {
	return &ScriptResponse{
		ID:             s.ID.String(),
		Name:           s.Name,
		TimelineID:     s.TimelineID,
		SegmentCount:   s.SegmentCount,
		DurationMillis: s.DurationMillis,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// writeScriptError maps definition and repository failures to responses
func writeScriptError(c *gin.Context, err error, fallback string) {
	var cfgErr *script.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_script",
			Message: cfgErr.Reason,
			Field:   cfgErr.Field,
		})
	case db.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Script not found",
		})
	case db.IsDuplicate(err):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "duplicate_name",
			Message: "A script with this name already exists",
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   fallback,
			Message: "Failed to process script",
		})
	}
}

func parseScriptID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid script ID format",
		})
		return uuid.Nil, false
	}
	return id, true
}

// CreateScript handles POST /api/scripts
func (h *ScriptHandler) CreateScript(c *gin.Context) {
	var req ScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	stored, err := models.NewScript(req.Name, req.Definition)
	if err != nil {
		writeScriptError(c, err, "create_failed")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.scripts.Create(ctx, stored); err != nil {
		logger.Log.Error().
			Err(err).
			Str("name", req.Name).
			Msg("Failed to create script")
		writeScriptError(c, err, "create_failed")
		return
	}

	logger.Log.Info().
		Str("script_id", stored.ID.String()).
		Str("name", stored.Name).
		Int("segment_count", stored.SegmentCount).
		Msg("Script created successfully")

	c.JSON(http.StatusCreated, toScriptResponse(stored))
}

// ListScripts handles GET /api/scripts
func (h *ScriptHandler) ListScripts(c *gin.Context) {
	limit := defaultListLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
			if limit > maxListLimit {
				limit = maxListLimit
			}
		}
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	scripts, err := h.scripts.List(ctx, limit, offset)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("Failed to list scripts")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve script list",
		})
		return
	}

	total, err := h.scripts.Count(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to count scripts")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to count scripts",
		})
		return
	}

	items := make([]*ScriptResponse, 0, len(scripts))
	for _, s := range scripts {
		items = append(items, toScriptResponse(s))
	}

	c.JSON(http.StatusOK, ScriptListResponse{
		Items:  items,
		Total:  int(total),
		Limit:  limit,
		Offset: offset,
	})
}

// GetScript handles GET /api/scripts/:id
func (h *ScriptHandler) GetScript(c *gin.Context) {
	id, ok := parseScriptID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	stored, err := h.scripts.GetByID(ctx, id)
	if err != nil {
		if !db.IsNotFound(err) {
			logger.Log.Error().Err(err).Str("script_id", id.String()).Msg("Failed to get script")
		}
		writeScriptError(c, err, "query_failed")
		return
	}

	def, err := stored.ParseDefinition()
	if err != nil {
		logger.Log.Error().Err(err).Str("script_id", id.String()).Msg("Stored script definition is corrupt")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "corrupt_script",
			Message: "Stored script definition could not be decoded",
		})
		return
	}

	response := toScriptResponse(stored)
	response.Definition = def
	c.JSON(http.StatusOK, response)
}

// ReplaceScript handles PUT /api/scripts/:id
func (h *ScriptHandler) ReplaceScript(c *gin.Context) {
	id, ok := parseScriptID(c)
	if !ok {
		return
	}

	var req ScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	updated, err := h.scripts.Replace(ctx, id, req.Name, req.Definition)
	if err != nil {
		if !script.IsConfigurationError(err) && !db.IsNotFound(err) {
			logger.Log.Error().Err(err).Str("script_id", id.String()).Msg("Failed to replace script")
		}
		writeScriptError(c, err, "update_failed")
		return
	}

	logger.Log.Info().
		Str("script_id", id.String()).
		Str("name", updated.Name).
		Msg("Script replaced successfully")

	c.JSON(http.StatusOK, toScriptResponse(updated))
}

// DeleteScript handles DELETE /api/scripts/:id
func (h *ScriptHandler) DeleteScript(c *gin.Context) {
	id, ok := parseScriptID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.scripts.Delete(ctx, id); err != nil {
		if !db.IsNotFound(err) {
			logger.Log.Error().Err(err).Str("script_id", id.String()).Msg("Failed to delete script")
		}
		writeScriptError(c, err, "delete_failed")
		return
	}

	logger.Log.Info().Str("script_id", id.String()).Msg("Script deleted successfully")
	c.JSON(http.StatusOK, DeleteResponse{Message: "Script deleted successfully"})
}

// SetupScriptRoutes registers script library routes
func SetupScriptRoutes(apiGroup *gin.RouterGroup, scripts scriptStore) {
	handler := NewScriptHandler(scripts)

	apiGroup.POST("/scripts", handler.CreateScript)
	apiGroup.GET("/scripts", handler.ListScripts)
	apiGroup.GET("/scripts/:id", handler.GetScript)
	apiGroup.PUT("/scripts/:id", handler.ReplaceScript)
	apiGroup.DELETE("/scripts/:id", handler.DeleteScript)
}
