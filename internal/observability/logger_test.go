package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/brightsmile/dental-assistant/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.ObservabilityConfig{LogLevel: "info", LogFormat: "json"}, false)
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger(config.ObservabilityConfig{LogLevel: "debug", LogFormat: "text"}, true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	_, err := NewLogger(config.ObservabilityConfig{LogLevel: "shouting"}, false)
	assert.Error(t, err)
}
