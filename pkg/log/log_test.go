package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLogger(t *testing.T) {
	ctx := context.Background()

	// Test Ctx without a logger in the context
	l1 := Ctx(ctx)
	require.NotNil(t, l1, "Ctx returned nil instead of default logger")
	assert.Equal(t, defaultLogger, l1, "Ctx should return defaultLogger")

	customLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	require.NotEqual(t, defaultLogger, customLogger, "Failed to create a distinct custom logger for testing")

	ctxWithLogger := With(ctx, customLogger)
	l2 := Ctx(ctxWithLogger)
	require.NotNil(t, l2, "Ctx returned nil, expected custom logger")
	assert.Equal(t, customLogger, l2, "Ctx should return customLogger")
}

func TestWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithAttrs(With(context.Background(), base), slog.String("requestID", "abc"))

	Ctx(ctx).InfoContext(ctx, "hello", slog.Int("n", 1))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "abc", line["requestID"])
	assert.Equal(t, float64(1), line["n"])
}

func TestSetDefaultLogLevel(t *testing.T) {
	defer SetDefaultLogLevel(slog.LevelInfo)
	SetDefaultLogLevel(slog.LevelError)
	assert.False(t, Ctx(context.Background()).Enabled(context.Background(), slog.LevelWarn))
	SetDefaultLogLevel(slog.LevelDebug)
	assert.True(t, Ctx(context.Background()).Enabled(context.Background(), slog.LevelDebug))
}
