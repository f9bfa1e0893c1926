package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewObservedLogger(t *testing.T) {
	log, logs := NewObservedLogger("consul", zapcore.InfoLevel)

	log.Debug("dropped")
	log.Warn("Consul bundle disabled.", zap.String("reason", "config"))

	assert.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "Consul bundle disabled.", entry.Message)
	assert.Equal(t, "consul", entry.ContextMap()["module"])
}
