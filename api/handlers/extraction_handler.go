package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/nowatermark-go/internal/app"
	"github.com/yourusername/nowatermark-go/internal/domain"
	"go.uber.org/zap"
)

const maxWait = 2 * time.Minute

// ExtractionHandler exposes the current extraction run
type ExtractionHandler struct {
	pipeline *app.ExtractionPipeline
	logger   *zap.Logger
}

// NewExtractionHandler creates a new extraction handler
func NewExtractionHandler(pipeline *app.ExtractionPipeline, logger *zap.Logger) *ExtractionHandler {
	return &ExtractionHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// SubmitRequest represents a request to start an extraction
type SubmitRequest struct {
	URL     string `json:"url"`
	Consent bool   `json:"consent"`
}

// SaveResponse is returned after copying a video into the media library
type SaveResponse struct {
	Location string `json:"location"`
}

// Submit handles POST /api/v1/extractions
func (h *ExtractionHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: domain.KindValidation, Category: domain.CategoryValidation})
		return
	}

	progress, err := h.pipeline.Submit(domain.NewExtractionRequest(req.URL, req.Consent))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, progress)
}

// Current handles GET /api/v1/extractions/current. With wait=true it blocks
// until the run settles or the request is cancelled.
func (h *ExtractionHandler) Current(c *gin.Context) {
	if c.Query("wait") != "true" {
		c.JSON(http.StatusOK, h.pipeline.Snapshot())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), maxWait)
	defer cancel()

	progress, err := h.pipeline.Await(ctx)
	if err != nil {
		h.logger.Debug("Wait for extraction ended early", zap.Error(err))
	}
	c.JSON(http.StatusOK, progress)
}

// Cancel handles POST /api/v1/extractions/current/cancel
func (h *ExtractionHandler) Cancel(c *gin.Context) {
	cancelled := h.pipeline.Cancel()
	c.JSON(http.StatusOK, gin.H{
		"cancelled": cancelled,
		"progress":  h.pipeline.Snapshot(),
	})
}

// Materialize handles POST /api/v1/extractions/current/materialize
func (h *ExtractionHandler) Materialize(c *gin.Context) {
	file, err := h.pipeline.Materialize(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

// Share handles POST /api/v1/extractions/current/share
func (h *ExtractionHandler) Share(c *gin.Context) {
	target, err := h.pipeline.ShareTarget(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, target)
}

// Save handles POST /api/v1/extractions/current/save
func (h *ExtractionHandler) Save(c *gin.Context) {
	location, err := h.pipeline.SaveToLibrary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SaveResponse{Location: location})
}
