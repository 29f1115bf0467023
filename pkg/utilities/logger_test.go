package utilities

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_DEV", "1")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FILE", "")
	cfg := ConfigFromEnv()
	assert.True(t, cfg.Dev)
	assert.Equal(t, "debug", cfg.Level)

	t.Setenv("LOG_DEV", "")
	t.Setenv("LOG_LEVEL", "warn")
	cfg = ConfigFromEnv()
	assert.False(t, cfg.Dev)
	assert.Equal(t, "warn", cfg.Level)
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, levelFromString("debug"))
	assert.Equal(t, zapcore.WarnLevel, levelFromString("warning"))
	assert.Equal(t, zapcore.ErrorLevel, levelFromString("error"))
	assert.Equal(t, zapcore.InfoLevel, levelFromString("bogus"))
}

func TestInit_WithFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "account.log")
	lg, err := Init(Config{Level: "info", File: file})
	require.NoError(t, err)
	lg.Info("hello")
	_ = lg.Sync()

	matches, err := filepath.Glob(file + ".*")
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}

func TestInit_Production(t *testing.T) {
	lg, err := Init(Config{Level: "error"})
	require.NoError(t, err)
	assert.False(t, lg.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, lg.Core().Enabled(zapcore.ErrorLevel))
}
