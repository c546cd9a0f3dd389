package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestErrorFile(t *testing.T) {
	assert.Equal(t, "arbbot-error.log", ErrorFile("arbbot.log"))
	assert.Equal(t, "/var/log/bot-error.json", ErrorFile("/var/log/bot.json"))
	assert.Equal(t, "bot-error", ErrorFile("bot"))
	assert.Equal(t, "", ErrorFile(""))
}

func TestNewLogger(t *testing.T) {
	t.Run("WritesToConfiguredFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "custom.log")
		logger, err := NewLogger(LoggerOptions{File: file})
		require.NoError(t, err)

		logger.Info("cycle complete", zap.Int("paths", 3))
		logger.Debug("hidden")
		_ = logger.Sync()

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 1)

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
		assert.Equal(t, "cycle complete", entry["msg"])
		assert.Equal(t, float64(3), entry["paths"])
		assert.Contains(t, entry, "timestamp")
	})

	t.Run("DebugLevel", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "debug.log")
		logger, err := NewLogger(LoggerOptions{Debug: true, File: file})
		require.NoError(t, err)

		logger.Debug("quote")
		_ = logger.Sync()

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"quote"`)
	})

	t.Run("ConsoleFormat", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "console.log")
		logger, err := NewLogger(LoggerOptions{Format: LogFormatConsole, File: file})
		require.NoError(t, err)

		logger.Warn("slow venue")
		_ = logger.Sync()

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Contains(t, string(data), "WARN")
		assert.False(t, json.Valid(data))
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		_, err := NewLogger(LoggerOptions{Format: "xml"})
		assert.EqualError(t, err, `unknown log format "xml"`)
	})

	t.Run("UnwritableFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "missing", "dir", "bot.log")
		_, err := NewLogger(LoggerOptions{File: file})
		assert.Error(t, err)
	})
}

func TestInitLoggerReplacesGlobal(t *testing.T) {
	dir := t.TempDir()
	first, err := InitLogger(LoggerOptions{File: filepath.Join(dir, "first.log")})
	require.NoError(t, err)
	assert.Same(t, first, GetLogger())

	second, err := InitLogger(LoggerOptions{File: filepath.Join(dir, "second.log")})
	require.NoError(t, err)
	assert.Same(t, second, GetLogger())

	GetLogger().Info("after swap")
	CleanupLogger()

	data, err := os.ReadFile(filepath.Join(dir, "second.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "after swap")
}
