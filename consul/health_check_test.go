package consul

import (
	"context"
	"errors"
	"testing"

	"github.com/KOMKZ/go-yogan-consul/logger"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestHealthCheck(t *testing.T) {
	agent := &fakeAgent{}
	check := NewHealthCheck(agent)
	assert.Equal(t, "consul", check.Name())
	assert.NoError(t, check.Check(context.Background()))

	boom := errors.New("connection refused")
	agent.PingFunc = func() error { return boom }
	log, logs := logger.NewObservedLogger("consul", zapcore.WarnLevel)
	check.log = log

	err := check.Check(context.Background())
	assert.ErrorIs(t, err, ErrAgentUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, logs.FilterMessage("Unable to ping consul").Len())

	agent.PingFunc = func() error { return ErrAgentUnavailable.Wrap(boom) }
	assert.ErrorIs(t, check.Check(context.Background()), ErrAgentUnavailable)
}
