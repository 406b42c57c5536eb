package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status   string                 `json:"status"`
	Database string                 `json:"database"`
	Sessions int                    `json:"sessions"`
	Time     string                 `json:"time"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// databasePinger is the part of db.DB the health check needs
type databasePinger interface {
	Health(ctx context.Context) error
}

// sessionCounter reports live player sessions
type sessionCounter interface {
	Count() int
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db       databasePinger
	sessions sessionCounter
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(database databasePinger, sessions sessionCounter) *HealthHandler {
	return &HealthHandler{db: database, sessions: sessions}
}

// Check handles the health check endpoint
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:   "ok",
		Sessions: h.sessions.Count(),
		Time:     time.Now().UTC().Format(time.RFC3339),
		Details:  make(map[string]interface{}),
	}

	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Database = "healthy"
	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database databasePinger, sessions sessionCounter) {
	handler := NewHealthHandler(database, sessions)
	apiGroup.GET("/health", handler.Check)
}
