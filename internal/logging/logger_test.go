package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/gregtusar/cashcarry/internal/config"
)

func TestNew_LevelAndFormat(t *testing.T) {
	logger := New(config.LoggingConfig{Level: "debug", Format: "text"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
	assert.Equal(t, os.Stdout, logger.Out)

	logger = New(config.LoggingConfig{Level: "warn", Format: "json"})
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestNew_InvalidLevel(t *testing.T) {
	logger := New(config.LoggingConfig{Level: "loud"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carry.log")
	logger := New(config.LoggingConfig{Level: "info", Format: "json", File: path})

	lj, ok := logger.Out.(*lumberjack.Logger)
	require.True(t, ok)
	defer lj.Close()

	logger.WithField("future_symbol", "BTCUSDT_251226").Info("Evaluated carry")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"future_symbol":"BTCUSDT_251226"`)
	assert.Contains(t, string(data), `"msg":"Evaluated carry"`)
}
