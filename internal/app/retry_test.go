package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/nowatermark-go/internal/domain"
	"go.uber.org/zap"
)

func fastBackoff(int) time.Duration { return time.Millisecond }

func TestWithRetry_RetriesTransientErrors(t *testing.T) {
	calls := 0
	result, err := withRetry(context.Background(), zap.NewNop(), fastBackoff, "test", 3,
		func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", domain.NewServerStatusError(502)
			}
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), zap.NewNop(), fastBackoff, "test", 3,
		func(ctx context.Context) (int, error) {
			calls++
			return 0, domain.NewServerMessageError(200, "unsupported link")
		})

	assert.True(t, domain.IsKind(err, domain.KindServerMessage))
	assert.Equal(t, 1, calls)
}

func TestWithRetry_ReturnsLastErrorAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), zap.NewNop(), fastBackoff, "test", 2,
		func(ctx context.Context) (int, error) {
			calls++
			return 0, domain.NewServerStatusError(500 + calls)
		})

	extractErr, ok := domain.AsExtractError(err)
	require.True(t, ok)
	assert.Equal(t, 502, extractErr.StatusCode)
	assert.Equal(t, 2, calls)
}

func TestWithRetry_AtLeastOneAttempt(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), zap.NewNop(), fastBackoff, "test", 0,
		func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("boom")
		})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := withRetry(ctx, zap.NewNop(), func(int) time.Duration { return time.Hour }, "test", 3,
		func(ctx context.Context) (int, error) {
			calls++
			time.AfterFunc(10*time.Millisecond, cancel)
			return 0, domain.NewServerStatusError(503)
		})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := withRetry(ctx, zap.NewNop(), fastBackoff, "test", 3,
		func(ctx context.Context) (int, error) {
			calls++
			return 0, nil
		})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
