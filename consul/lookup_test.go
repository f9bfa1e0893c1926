package consul

import (
	"errors"
	"testing"

	"github.com/KOMKZ/go-yogan-consul/config"
	"github.com/KOMKZ/go-yogan-consul/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func kvAgent(kv map[string]string) *fakeAgent {
	return &fakeAgent{GetValueFunc: func(key string) (string, bool, error) {
		v, ok := kv[key]
		return v, ok, nil
	}}
}

func TestKVLookup(t *testing.T) {
	agent := kvAgent(map[string]string{"db/host": "10.0.0.3"})

	v, found, err := NewKVLookup(agent, true).Lookup("db/host")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "10.0.0.3", v)

	v, found, err = NewKVLookup(agent, false).Lookup("missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, v)

	_, _, err = NewKVLookup(agent, true).Lookup("missing")
	assert.ErrorIs(t, err, ErrUndefinedVariable)
	assert.ErrorIs(t, err, config.ErrUndefinedVariable)
	assert.Contains(t, err.Error(), "could not substitute the expression '${missing}'")
}

func TestKVLookup_AgentError(t *testing.T) {
	agent := &fakeAgent{GetValueFunc: func(string) (string, bool, error) { return "", false, errors.New("timeout") }}

	lookup := NewKVLookup(agent, false)
	log, logs := logger.NewObservedLogger("consul-config", zapcore.WarnLevel)
	lookup.log = log

	_, found, err := lookup.Lookup("db/host")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, logs.FilterMessage("Unable to lookup key in consul").Len())

	strict := NewKVLookup(agent, true)
	_, _, err = strict.Lookup("db/host")
	assert.ErrorIs(t, err, ErrUndefinedVariable)
}

func TestKVSubstitutor(t *testing.T) {
	agent := kvAgent(map[string]string{"env": "prod", "db_prod": "pg.prod:5432"})

	s := NewKVSubstitutor(agent, false, true)
	out, err := s.Replace("${db_${env}} ${missing} ${other:-fallback}")
	require.NoError(t, err)
	assert.Equal(t, "pg.prod:5432 ${missing} fallback", out)

	strict := NewKVSubstitutor(agent, true, false)
	out, err = strict.Replace("${missing:-x}")
	require.NoError(t, err, "默认值优先于严格模式")
	assert.Equal(t, "x", out)

	_, err = strict.Replace("${missing}")
	assert.ErrorIs(t, err, ErrUndefinedVariable)
}
