package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, slog.LevelInfo, true).With("component", "engine")

	l.Debug("hidden")
	l.Info("recorded", "index", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "recorded", entry["msg"])
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, float64(2), entry["index"])
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, slog.LevelWarn, false).Info("dropped")
	assert.Empty(t, buf.String())

	newLogger(&buf, slog.LevelWarn, false).Warn("kept", "frames", 3)
	assert.Contains(t, buf.String(), "msg=kept")
	assert.Contains(t, buf.String(), "frames=3")
}
