package logger

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskpool/internal/config"
)

func TestSetup_ValidLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "Info"} {
		l, err := Setup(config.LogConfig{Level: level})
		require.NoError(t, err, "level %q", level)
		assert.NotNil(t, l, "level %q", level)
	}
}

func TestSetup_InvalidLevelFallsBack(t *testing.T) {
	l, err := Setup(config.LogConfig{Level: "verbose"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestSetup_SetsDefaultLogger(t *testing.T) {
	l, err := Setup(config.LogConfig{Level: "info"})
	require.NoError(t, err)
	assert.Equal(t, l, slog.Default())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}
