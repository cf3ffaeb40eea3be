package infrastructure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	ctx = WithTraceID(ctx, "trace-123")
	assert.Equal(t, "trace-123", GetTraceID(ctx))
}

func TestEnsureTraceID(t *testing.T) {
	t.Run("generates when absent", func(t *testing.T) {
		ctx := EnsureTraceID(context.Background())
		assert.NotEmpty(t, GetTraceID(ctx))
	})

	t.Run("preserves an existing trace id", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "trace-123")
		ctx = EnsureTraceID(ctx)
		assert.Equal(t, "trace-123", GetTraceID(ctx))
	})

	t.Run("generated ids are unique", func(t *testing.T) {
		first := GetTraceID(EnsureTraceID(context.Background()))
		second := GetTraceID(EnsureTraceID(context.Background()))
		assert.NotEqual(t, first, second)
	})
}
