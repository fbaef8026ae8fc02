package types

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-abc")
	assert.Equal(t, "req-abc", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestLoggerFromContext(t *testing.T) {
	scoped := slog.New(slog.DiscardHandler)
	fallback := slog.New(slog.DiscardHandler)

	ctx := WithLogger(context.Background(), scoped)
	assert.Same(t, scoped, LoggerFromContext(ctx, fallback))
	assert.Same(t, fallback, LoggerFromContext(context.Background(), fallback))
	assert.NotNil(t, LoggerFromContext(context.Background(), nil))
}

func TestIsTestKey(t *testing.T) {
	assert.True(t, IsTestKey("sk_test_123"))
	assert.True(t, IsTestKey("rk_test_123"))
	assert.False(t, IsTestKey("sk_live_123"))
	assert.False(t, IsTestKey(""))
}
