package weather

import (
	"context"

	"github.com/google/uuid"
)

type runIDKey struct{}

// ContextWithRunID attaches the run identifier to ctx so stages can tag their output.
func ContextWithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the run identifier stored in ctx, if any.
func RunIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(runIDKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
