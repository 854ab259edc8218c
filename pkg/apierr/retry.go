package apierr

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// RetryConfig controls Retry.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Logger            *log.Logger
}

var DefaultRetryConfig = RetryConfig{
	MaxAttempts:       3,
	InitialBackoff:    1 * time.Second,
	MaxBackoff:        30 * time.Second,
	BackoffMultiplier: 2.0,
}

// Retry calls fn until it succeeds, returns a non-transient error, or the
// attempts are used up. Only errors of kind Transient are retried.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}

			backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
			if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if KindOf(err) != Transient {
			return err
		}

		if cfg.Logger != nil {
			cfg.Logger.Warn("attempt failed, retrying", "attempt", attempt+1, "error", err)
		}
	}

	if cfg.MaxAttempts == 1 {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
