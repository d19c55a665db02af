package health

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRunAll(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("up", func(ctx context.Context) Status { return StatusOK })
	c.Register("down", func(ctx context.Context) Status { return StatusDown })

	results := c.RunAll(context.Background())
	assert.Equal(t, StatusOK, results["up"])
	assert.Equal(t, StatusDown, results["down"])
	assert.False(t, c.IsReady(context.Background()))
}

func TestIsReady_AllOK(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("a", func(ctx context.Context) Status { return StatusOK })
	c.Register("b", func(ctx context.Context) Status { return StatusDegraded })
	assert.True(t, c.IsReady(context.Background()))
}

func TestReadinessHandler(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("store", func(ctx context.Context) Status { return StatusOK })

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready":true`)
}

func TestReadinessHandler_Down(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("store", func(ctx context.Context) Status { return StatusDown })

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, 503, rec.Code)
}
