package consul

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-consul/application"
	"github.com/KOMKZ/go-yogan-consul/config"
	"github.com/hashicorp/consul/api"
	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appSource(extra map[string]interface{}) config.ConfigSource {
	data := map[string]interface{}{
		"server": map[string]interface{}{
			"mode":        "test",
			"application": map[string]interface{}{"host": "127.0.0.1", "port": 0},
			"admin":       map[string]interface{}{"host": "127.0.0.1", "port": 0},
		},
	}
	for k, v := range extra {
		data[k] = v
	}
	return config.NewMapSource("test", 100, data)
}

func fakeFactory(agent Agent, calls *atomic.Int32) AgentFactory {
	return func(Config) (Agent, *api.Client, error) {
		calls.Add(1)
		return agent, nil, nil
	}
}

func TestBundle_Lifecycle(t *testing.T) {
	var registered atomic.Bool
	agent := &fakeAgent{
		IsRegisteredFunc: func(string) (bool, error) { return registered.Load(), nil },
		RegisterFunc: func(*api.AgentServiceRegistration) error {
			registered.Store(true)
			return nil
		},
		GetValueFunc: func(key string) (string, bool, error) {
			if key == "greeting" {
				return "hello from kv", true, nil
			}
			return "", false, nil
		},
	}
	var calls atomic.Int32

	app := application.New("fallback-name", application.WithConfigSource(appSource(map[string]interface{}{
		"greeting": "${greeting}",
		"consul":   map[string]interface{}{"service_id": "svc-1", "retry_interval": "1s"},
	})))
	app.AddBundle(NewBundle("hello-world", WithAgentFactory(fakeFactory(agent, &calls))))

	require.NoError(t, app.Setup())
	assert.Equal(t, int32(2), calls.Load(), "Initialize 和 Run 各创建一次")
	assert.Equal(t, "hello from kv", app.ConfigLoader().GetString("greeting"))
	assert.Contains(t, app.HealthChecks().Names(), "consul")

	injected, err := do.Invoke[Agent](app.Injector())
	require.NoError(t, err)
	assert.Same(t, agent, injected)
	adv, err := do.Invoke[*Advertiser](app.Injector())
	require.NoError(t, err)
	assert.Equal(t, "svc-1", adv.ServiceID())

	w := httptest.NewRecorder()
	app.AdminRouter().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tasks/maintenance?enable=true&reason=test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK\n", w.Body.String())
	assert.Equal(t, []toggleCall{{"svc-1", true, "test"}}, agent.toggles)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Start(ctx))
	require.Len(t, agent.registered, 1)
	reg := agent.registered[0]
	assert.Equal(t, "hello-world", reg.Name)
	assert.Equal(t, app.Connectors()[0].Port, reg.Port)

	require.NoError(t, app.Stop(ctx))
	assert.Equal(t, []string{"svc-1"}, agent.deregistered)
}

func TestBundle_Disabled(t *testing.T) {
	var calls atomic.Int32
	app := application.New("svc", application.WithConfigSource(appSource(map[string]interface{}{
		"consul": map[string]interface{}{"enabled": false},
	})))
	app.AddBundle(NewBundle("svc", WithAgentFactory(fakeFactory(&fakeAgent{}, &calls))))

	require.NoError(t, app.Setup())
	assert.Equal(t, int32(1), calls.Load(), "只有配置替换阶段连接 agent")
	assert.NotContains(t, app.HealthChecks().Names(), "consul")
	_, err := do.Invoke[Agent](app.Injector())
	assert.Error(t, err)
}

func TestBundle_AgentUnavailableAtInitialize(t *testing.T) {
	factory := func(cfg Config) (Agent, *api.Client, error) {
		if cfg.ServicePing {
			return nil, nil, ErrAgentUnavailable
		}
		return &fakeAgent{}, nil, nil
	}
	app := application.New("svc", application.WithConfigSource(appSource(map[string]interface{}{
		"greeting": "${greeting}",
		"consul":   map[string]interface{}{"service_ping": false},
	})))
	app.AddBundle(NewBundle("svc", WithAgentFactory(factory)))

	require.NoError(t, app.Setup())
	assert.Equal(t, "${greeting}", app.ConfigLoader().GetString("greeting"), "替换被关闭")
	assert.Contains(t, app.HealthChecks().Names(), "consul")
}

func TestBundle_InvalidConfig(t *testing.T) {
	app := application.New("svc", application.WithConfigSource(appSource(map[string]interface{}{
		"consul": map[string]interface{}{"check_interval": "10ms"},
	})))
	app.AddBundle(NewBundle("svc", WithAgentFactory(func(Config) (Agent, *api.Client, error) {
		return nil, nil, errors.New("offline")
	})))

	assert.ErrorContains(t, app.Setup(), "invalid consul config")
}
