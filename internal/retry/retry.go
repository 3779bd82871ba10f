// Package retry provides bounded exponential-backoff retry for transient
// upstream failures.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wallet-snapshots/internal/logging"
)

// Config configures retry behavior. All knobs are explicit so callers can
// tune per upstream; nothing here is a process-wide global.
type Config struct {
	MaxAttempts  int           // total attempts, including the first
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration // backoff ceiling
	Multiplier   float64       // backoff growth factor
	// Retryable decides whether a failed attempt is worth repeating. When
	// nil every error is retried until attempts run out.
	Retryable func(error) bool
}

// DefaultConfig matches the upstream APIs' documented tolerance:
// 1s, 2s, 4s, 8s capped at 16s, five attempts total.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
	}
}

// Func is one attempt of the operation under retry.
type Func func(ctx context.Context, attempt int) error

// Do runs fn with exponential backoff until it succeeds, a non-retryable
// error occurs, attempts are exhausted, or ctx is cancelled. The returned
// error is the last attempt's error, wrapped with the attempt count when the
// budget ran out.
func Do(ctx context.Context, cfg *Config, fn Func) error {
	logger := logging.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				logger.WithField("attempts", attempt).Info("Operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := backoff(cfg, attempt)
		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": cfg.MaxAttempts,
			"delay":       delay.String(),
			"error":       err.Error(),
		}).Warn("Operation failed, retrying with exponential backoff")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// backoff computes the delay following the given attempt, capped at MaxDelay.
func backoff(cfg *Config, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
