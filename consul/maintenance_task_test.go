package consul

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/KOMKZ/go-yogan-consul/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestMaintenanceTask_Execute(t *testing.T) {
	tests := []struct {
		name   string
		params map[string][]string
		want   toggleCall
	}{
		{"enable", map[string][]string{"enable": {"true"}}, toggleCall{"svc-1", true, ""}},
		{"enable ignores case", map[string][]string{"enable": {"TRUE"}, "reason": {"deploy"}}, toggleCall{"svc-1", true, "deploy"}},
		{"disable", map[string][]string{"enable": {"false"}}, toggleCall{"svc-1", false, ""}},
		{"anything else disables", map[string][]string{"enable": {"yes"}}, toggleCall{"svc-1", false, ""}},
		{"empty enable disables", map[string][]string{"enable": {}}, toggleCall{"svc-1", false, ""}},
		{"first non-empty reason", map[string][]string{"enable": {"true"}, "reason": {"", "upgrade", "other"}}, toggleCall{"svc-1", true, "upgrade"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := &fakeAgent{}
			var out bytes.Buffer

			require.NoError(t, NewMaintenanceTask(agent, "svc-1").Execute(context.Background(), tt.params, &out))
			assert.Equal(t, []toggleCall{tt.want}, agent.toggles)
			assert.Equal(t, "OK\n", out.String())
		})
	}
}

func TestMaintenanceTask_MissingEnable(t *testing.T) {
	agent := &fakeAgent{}
	var out bytes.Buffer

	err := NewMaintenanceTask(agent, "svc-1").Execute(context.Background(), map[string][]string{"reason": {"x"}}, &out)
	assert.ErrorIs(t, err, ErrMissingParameter)
	assert.Contains(t, err.Error(), `Parameter "enable" not found`)
	assert.Empty(t, agent.toggles)
	assert.Empty(t, out.String())
}

func TestMaintenanceTask_AgentError(t *testing.T) {
	boom := errors.New("agent down")
	agent := &fakeAgent{ToggleFunc: func(string, bool, string) error { return boom }}
	task := NewMaintenanceTask(agent, "svc-1")
	log, logs := logger.NewObservedLogger("consul", zapcore.InfoLevel)
	task.log = log
	var out bytes.Buffer

	err := task.Execute(context.Background(), map[string][]string{"enable": {"true"}}, &out)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, out.String())
	entries := logs.FilterMessage("Enabling maintenance mode").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "svc-1", fields["service_id"])
	assert.Equal(t, true, fields["enable"])
	assert.Equal(t, "none given", fields["reason"])
	assert.Equal(t, "maintenance", task.Name())
}
