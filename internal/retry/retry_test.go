package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	perrors "github.com/tsops/pulseboard/internal/errors"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestDo_Success(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_NonRetryableError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func(ctx context.Context) error {
		calls++
		return perrors.NewAPIError("clickup", 404, "not found")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls) // Should not retry
}

func TestDo_RetryableError_EventualSuccess(t *testing.T) {
	calls := 0
	cfg := Config{MaxRetries: 3, BaseDelay: time.Millisecond, Sleep: noSleep}
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return perrors.NewAPIError("clickup", 503, "unavailable")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_RetryableError_AllFail(t *testing.T) {
	calls := 0
	cfg := Config{MaxRetries: 2, BaseDelay: time.Millisecond, Sleep: noSleep}
	lastErr := perrors.NewAPIError("clickup", 429, "rate limit")
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return lastErr
	})
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
	var apiErr *perrors.APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.StatusCode)
}

// A mock returning 503 twice then succeeding must return success, having slept
// twice with strictly increasing pre-jitter delays.
func TestDo_BackoffDelaysIncrease(t *testing.T) {
	var slept []time.Duration
	cfg := Config{
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		Multiplier: 1.5,
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls <= 2 {
			return perrors.NewAPIError("clickup", 503, "bad gateway")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, slept, 2)
	assert.Greater(t, slept[1], slept[0])
	assert.Equal(t, cfg.Delay(0), slept[0])
	assert.Equal(t, cfg.Delay(1), slept[1])
}

func TestDo_JitterBounded(t *testing.T) {
	var slept []time.Duration
	cfg := Config{
		MaxRetries: 1,
		BaseDelay:  100 * time.Millisecond,
		Multiplier: 1.5,
		MaxJitter:  500 * time.Millisecond,
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	_ = Do(context.Background(), cfg, func(ctx context.Context) error {
		return perrors.NewAPIError("clickup", 500, "boom")
	})
	assert.Len(t, slept, 1)
	assert.GreaterOrEqual(t, slept[0], cfg.Delay(0))
	assert.Less(t, slept[0], cfg.Delay(0)+cfg.MaxJitter)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := Config{MaxRetries: 3, BaseDelay: time.Millisecond}
	err := Do(ctx, cfg, func(ctx context.Context) error {
		return perrors.NewAPIError("clickup", 503, "unavailable")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_GenericNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func(ctx context.Context) error {
		calls++
		return errors.New("generic error")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
