package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		" error ": LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestConsoleFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: LevelWarn, Output: &buf, Service: "lanesim"})
	require.NoError(t, err)

	l.Slog().Info("hidden")
	l.Slog().Warn("shown", "vehicle_id", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "service=lanesim")
	assert.Contains(t, out, "vehicle_id=3")
}

func TestFileLogIsJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := New(Config{Level: LevelDebug, LogDir: dir, Service: "sim", Quiet: true})
	require.NoError(t, err)

	l.With("run_id", "abc").Slog().Debug("tick", "n", 1)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "close is idempotent")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "sim_"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "tick", entry["msg"])
	assert.Equal(t, "sim", entry["service"])
	assert.Equal(t, "abc", entry["run_id"])
}

func TestConsoleAndFile(t *testing.T) {
	var buf bytes.Buffer
	dir := t.TempDir()
	l, err := New(Config{LogDir: dir, Output: &buf, JSON: true})
	require.NoError(t, err)
	defer l.Close()

	l.Slog().Info("both")
	assert.Contains(t, buf.String(), `"msg":"both"`)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Slog().Error("nothing") })
	assert.NoError(t, Discard().Close())
}
