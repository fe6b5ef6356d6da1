// internal/observability/logger_test.go
package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func newBuffer(t *testing.T) *zaptest.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	return &zaptest.Buffer{}
}

func TestInitialize(t *testing.T) {
	t.Run("console output is colorized", func(t *testing.T) {
		buf := newBuffer(t)
		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "pilot",
			Colors:      config.ColorConfig{Info: "green"},
		}, buf)

		GetLogger().Info("navigated")
		Sync()

		out := buf.String()
		assert.Contains(t, out, "\x1b[32mINFO"+colorReset)
		assert.Contains(t, out, "pilot.")
		assert.Contains(t, out, "navigated")
	})

	t.Run("levels without a color stay plain", func(t *testing.T) {
		buf := newBuffer(t)
		Initialize(config.LoggerConfig{Level: "debug", Format: "console"}, buf)

		GetLogger().Debug("quiet")
		assert.Contains(t, buf.String(), "DEBUG")
		assert.NotContains(t, buf.String(), colorReset)
	})

	t.Run("json output", func(t *testing.T) {
		buf := newBuffer(t)
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, buf)

		GetLogger().Warn("resolver gave up", zap.String("description", "login button"))

		lines := buf.Lines()
		require.Len(t, lines, 1)
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "resolver gave up", entry["msg"])
		assert.Equal(t, "login button", entry["description"])
	})

	t.Run("level filtering", func(t *testing.T) {
		buf := newBuffer(t)
		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, buf)

		GetLogger().Info("hidden")
		GetLogger().Error("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		buf := newBuffer(t)
		Initialize(config.LoggerConfig{Level: "loud", Format: "json"}, buf)

		GetLogger().Debug("hidden")
		GetLogger().Info("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("log file receives json", func(t *testing.T) {
		buf := newBuffer(t)
		path := filepath.Join(t.TempDir(), "pilot.log")
		Initialize(config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1}, buf)

		GetLogger().Error("written to file")
		Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"written to file"`)
	})

	t.Run("only the first call takes effect", func(t *testing.T) {
		buf := newBuffer(t)
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"}, buf)
		first := GetLogger()

		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, zapcore.AddSync(&zaptest.Buffer{}))
		assert.Same(t, first, GetLogger())

		GetLogger().Info("test")
		assert.Contains(t, buf.String(), "First")
		assert.NotContains(t, buf.String(), "Second")
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("fallback before initialization", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		assert.NotNil(t, GetLogger())
		assert.Nil(t, globalLogger.Load())
	})

	t.Run("global after initialization", func(t *testing.T) {
		buf := newBuffer(t)
		Initialize(config.LoggerConfig{Level: "info"}, buf)
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}
