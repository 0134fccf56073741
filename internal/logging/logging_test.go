package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/plangraph/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("info"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestNew_JSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, err := New(config.LogConfig{
		Level:       "warn",
		Format:      "json",
		OutputPaths: []string{path},
	})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", zap.String("node_id", "a"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "a", entry["node_id"])
	assert.Equal(t, "warn", entry["level"])
	assert.Contains(t, entry, "timestamp")
	assert.NotContains(t, entry, "caller")
}

func TestNew_Console(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "debug", Format: "console", EnableCaller: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_BadOutputPath(t *testing.T) {
	_, err := New(config.LogConfig{OutputPaths: []string{filepath.Join(t.TempDir(), "missing", "dir", "x.log")}})
	assert.Error(t, err)

	assert.NotNil(t, MustNew(config.LogConfig{OutputPaths: []string{filepath.Join(t.TempDir(), "missing", "dir", "x.log")}}))
}
