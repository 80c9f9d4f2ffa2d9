package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WithoutEndpoint(t *testing.T) {
	p, err := Setup(context.Background())
	require.NoError(t, err)

	assert.False(t, p.Enabled())

	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, nil)
	assert.Same(t, h, p.Handler(h))

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestFanoutHandler(t *testing.T) {
	var info, debug bytes.Buffer

	logger := slog.New(NewFanoutHandler(
		slog.NewJSONHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)).With("component", "test")

	logger.Debug("noisy")
	logger.Info("session finalized", "message_id", "m1")

	assert.NotContains(t, info.String(), "noisy")
	assert.Contains(t, info.String(), `"message_id":"m1"`)
	assert.Contains(t, info.String(), `"component":"test"`)
	assert.Contains(t, debug.String(), "noisy")
	assert.Contains(t, debug.String(), "session finalized")
}
