package requestid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithAndFrom(t *testing.T) {
	ctx := With(context.Background(), "req-123")
	assert.Equal(t, "req-123", From(ctx))
}

func TestFrom_MintsWhenAbsent(t *testing.T) {
	a := From(context.Background())
	b := From(context.Background())
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestNew_TagsContext(t *testing.T) {
	ctx, id := New(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, From(ctx))
}

func TestWith_EmptyIDIsIgnoredOnRead(t *testing.T) {
	ctx := With(context.Background(), "")
	assert.NotEmpty(t, From(ctx))
}
