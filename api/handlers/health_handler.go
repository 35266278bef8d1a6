package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/nowatermark-go/internal/app"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	pipeline *app.ExtractionPipeline
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(pipeline *app.ExtractionPipeline) *HealthHandler {
	return &HealthHandler{
		pipeline: pipeline,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Pipeline struct {
		Running bool   `json:"running"`
		Phase   string `json:"phase"`
	} `json:"pipeline"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: Version,
	}
	response.Pipeline.Running = h.pipeline.IsRunning()
	response.Pipeline.Phase = string(h.pipeline.Snapshot().Phase)

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.pipeline.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "extraction pipeline closed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
