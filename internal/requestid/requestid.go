// Package requestid tags API requests, and the refresh runs they trigger,
// with a correlation ID carried through context. Unattended runs (ticker
// refreshes) mint their own ID on first read so every run is traceable.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// With returns a context carrying the given correlation ID.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the context's correlation ID, minting a fresh one when the
// context has none.
func From(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// New mints a correlation ID and returns the tagged context alongside it.
func New(ctx context.Context) (context.Context, string) {
	id := uuid.New().String()
	return With(ctx, id), id
}
