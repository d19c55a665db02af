// Package retry provides exponential backoff retry logic for external API calls.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	perrors "github.com/tsops/pulseboard/internal/errors"
)

// Config holds retry configuration.
type Config struct {
	MaxRetries int           // retries after the initial attempt
	BaseDelay  time.Duration // delay before the first retry
	Multiplier float64       // backoff growth factor per attempt
	MaxJitter  time.Duration // random jitter added to every delay

	// Sleep overrides the backoff sleep. Tests inject a recorder here.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultConfig returns the retry budget used for foundational calls
// (space listing, task pages).
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Multiplier: 1.5,
		MaxJitter:  500 * time.Millisecond,
	}
}

// FastFailConfig returns the smaller budget used for best-effort calls
// (per-task comment fetches).
func FastFailConfig() Config {
	return Config{
		MaxRetries: 1,
		BaseDelay:  300 * time.Millisecond,
		Multiplier: 1.5,
		MaxJitter:  500 * time.Millisecond,
	}
}

// Delay returns the backoff delay for the given attempt, before jitter.
func (c Config) Delay(attempt int) time.Duration {
	return time.Duration(float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt)))
}

// Do executes fn, retrying on retryable errors with exponential backoff plus
// jitter. Non-retryable errors return immediately. After exhausting retries,
// the last observed error is returned.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 1.5
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		}
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !perrors.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.Delay(attempt)
		if cfg.MaxJitter > 0 {
			delay += time.Duration(rand.Int63n(int64(cfg.MaxJitter)))
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}
