package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/nowatermark-go/internal/app"
	"github.com/yourusername/nowatermark-go/internal/domain"
)

// HistoryHandler handles history-related requests
type HistoryHandler struct {
	history *app.HistoryService
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(history *app.HistoryService) *HistoryHandler {
	return &HistoryHandler{
		history: history,
	}
}

// HistoryItem is a history record with its display fields
type HistoryItem struct {
	*domain.HistoryRecord
	DurationText string `json:"duration_text"`
	SizeText     string `json:"size_text"`
	CreatedText  string `json:"created_text"`
}

func newHistoryItem(record *domain.HistoryRecord) HistoryItem {
	return HistoryItem{
		HistoryRecord: record,
		DurationText:  record.DurationText(),
		SizeText:      record.SizeText(),
		CreatedText:   record.CreatedAt.Local().Format(time.DateTime),
	}
}

// List handles GET /api/v1/history
func (h *HistoryHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		limit = 0
	}

	records, err := h.history.List(limit)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]HistoryItem, 0, len(records))
	for _, record := range records {
		items = append(items, newHistoryItem(record))
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(items),
		"records": items,
	})
}

// Get handles GET /api/v1/history/:id
func (h *HistoryHandler) Get(c *gin.Context) {
	record, err := h.history.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newHistoryItem(record))
}

// Delete handles DELETE /api/v1/history/:id
func (h *HistoryHandler) Delete(c *gin.Context) {
	if err := h.history.Delete(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Materialize handles POST /api/v1/history/:id/materialize
func (h *HistoryHandler) Materialize(c *gin.Context) {
	file, err := h.history.EnsureLocalFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

// Save handles POST /api/v1/history/:id/save
func (h *HistoryHandler) Save(c *gin.Context) {
	location, err := h.history.SaveToLibrary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SaveResponse{Location: location})
}
