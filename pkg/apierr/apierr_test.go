package apierr

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{404, NotFound},
		{401, Unauthorized},
		{403, Unauthorized},
		{408, Transient},
		{429, Transient},
		{500, Transient},
		{503, Transient},
		{400, Malformed},
		{422, Malformed},
		{409, Unknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, KindForStatus(tt.status), "status %d", tt.status)
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("load tasks: %w", FromStatus("download", 404, "Entry not found"))

	assert.Equal(t, NotFound, KindOf(err))
	assert.True(t, Is(err, NotFound))
	assert.False(t, Is(nil, NotFound))
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.Contains(t, err.Error(), "Entry not found")
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 2}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return New(Transient, "op", errors.New("busy"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanent(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(), func(ctx context.Context) error {
		calls++
		return New(Unauthorized, "op", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Unauthorized, KindOf(err))
}

func TestRetry_Exhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(), func(ctx context.Context) error {
		calls++
		return New(Transient, "op", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, Transient, KindOf(err))
	assert.Contains(t, err.Error(), "max retries exceeded")
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour}

	err := Retry(ctx, cfg, func(ctx context.Context) error {
		cancel()
		return New(Transient, "op", nil)
	})

	assert.ErrorIs(t, err, context.Canceled)
}
