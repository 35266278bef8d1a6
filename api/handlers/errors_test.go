package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yourusername/nowatermark-go/internal/app"
	"github.com/yourusername/nowatermark-go/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.NewValidationError("Please enter a valid link"), http.StatusBadRequest},
		{"not found", fmt.Errorf("lookup: %w", domain.ErrHistoryNotFound), http.StatusNotFound},
		{"no video", domain.NewKindError(domain.KindNoVideoAvailable, nil), http.StatusConflict},
		{"permission", domain.NewKindError(domain.KindPermissionDenied, nil), http.StatusForbidden},
		{"file save", domain.NewKindError(domain.KindFileSaveFailed, nil), http.StatusInternalServerError},
		{"library", domain.NewKindError(domain.KindLibrarySaveFailed, nil), http.StatusInternalServerError},
		{"server status", domain.NewServerStatusError(503), http.StatusBadGateway},
		{"server message", domain.NewServerMessageError(200, "unsupported"), http.StatusBadGateway},
		{"network", domain.NewTransportError(errors.New("x")), http.StatusBadGateway},
		{"cancelled", context.Canceled, http.StatusConflict},
		{"closed", app.ErrPipelineClosed, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
