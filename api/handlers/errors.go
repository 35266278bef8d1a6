package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/nowatermark-go/internal/app"
	"github.com/yourusername/nowatermark-go/internal/domain"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error    string               `json:"error"`
	Kind     domain.ErrorKind     `json:"kind,omitempty"`
	Category domain.ErrorCategory `json:"category,omitempty"`
}

// statusFor maps a pipeline or history error onto an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrHistoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, app.ErrPipelineClosed):
		return http.StatusConflict
	}

	extractErr, ok := domain.AsExtractError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch extractErr.Kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNoVideoAvailable:
		return http.StatusConflict
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	case domain.KindFileSaveFailed, domain.KindLibrarySaveFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func respondError(c *gin.Context, err error) {
	response := ErrorResponse{Error: err.Error()}
	if extractErr, ok := domain.AsExtractError(err); ok {
		response.Error = extractErr.UserMessage()
		response.Kind = extractErr.Kind
		response.Category = extractErr.Category()
	} else if errors.Is(err, context.Canceled) {
		response.Error = "extraction was cancelled"
	}

	c.Error(err)
	c.JSON(statusFor(err), response)
}
