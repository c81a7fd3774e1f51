package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gfm.log")
	log, err := NewLogger(LoggingConfig{Level: "debug", Format: "json", OutputPath: path})
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	log.WithContext(ctx).WithClientID("c-1").WithOperation("deploy").Info("started")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"client_id":"c-1"`)
	assert.Contains(t, out, `"operation":"deploy"`)
	assert.Contains(t, out, `"msg":"started"`)
}

func TestNewLoggerUnknownLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gfm.log")
	log, err := NewLogger(LoggingConfig{Level: "chatty", Format: "json", OutputPath: path})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("shown")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "hidden"))
	assert.True(t, strings.Contains(string(data), "shown"))
}

func TestWithContextWithoutValuesReturnsSameLogger(t *testing.T) {
	log, err := NewLogger(LoggingConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	assert.Same(t, log, log.WithContext(context.Background()))
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	log, err := NewLogger(LoggingConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	SetDefault(log)
	assert.Same(t, log, Default())
}
