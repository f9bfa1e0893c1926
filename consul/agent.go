package consul

import (
	"context"
	"fmt"

	"github.com/hashicorp/consul/api"
)

// Agent 本包用到的 Consul agent 能力
type Agent interface {
	// IsRegistered 本地 agent 是否已有该服务 ID
	IsRegistered(ctx context.Context, serviceID string) (bool, error)

	Register(ctx context.Context, reg *api.AgentServiceRegistration) error
	Deregister(ctx context.Context, serviceID string) error

	// Ping 调用 /v1/agent/self 确认 agent 可达
	Ping(ctx context.Context) error

	ToggleMaintenanceMode(ctx context.Context, serviceID string, enable bool, reason string) error

	// HealthyServiceInstances 只返回健康检查全部通过的实例
	HealthyServiceInstances(ctx context.Context, name string) ([]*api.ServiceEntry, error)

	// GetValueAsString 读取 KV，found=false 表示 key 不存在
	GetValueAsString(ctx context.Context, key string) (value string, found bool, err error)
}

// apiAgent 基于 hashicorp/consul/api 的实现
type apiAgent struct {
	client *api.Client
}

// NewAgent 包装 Consul HTTP 客户端
func NewAgent(client *api.Client) Agent {
	return &apiAgent{client: client}
}

func query(ctx context.Context) *api.QueryOptions {
	return (&api.QueryOptions{}).WithContext(ctx)
}

func (a *apiAgent) IsRegistered(ctx context.Context, serviceID string) (bool, error) {
	services, err := a.client.Agent().ServicesWithFilterOpts("", query(ctx))
	if err != nil {
		return false, fmt.Errorf("list agent services: %w", err)
	}
	_, ok := services[serviceID]
	return ok, nil
}

func (a *apiAgent) Register(ctx context.Context, reg *api.AgentServiceRegistration) error {
	opts := api.ServiceRegisterOpts{}.WithContext(ctx)
	if err := a.client.Agent().ServiceRegisterOpts(reg, opts); err != nil {
		return fmt.Errorf("register service %s: %w", reg.ID, err)
	}
	return nil
}

func (a *apiAgent) Deregister(ctx context.Context, serviceID string) error {
	if err := a.client.Agent().ServiceDeregisterOpts(serviceID, query(ctx)); err != nil {
		return fmt.Errorf("deregister service %s: %w", serviceID, err)
	}
	return nil
}

func (a *apiAgent) Ping(ctx context.Context) error {
	var self map[string]map[string]interface{}
	if _, err := a.client.Raw().Query("/v1/agent/self", &self, query(ctx)); err != nil {
		return ErrAgentUnavailable.Wrap(err)
	}
	return nil
}

func (a *apiAgent) ToggleMaintenanceMode(ctx context.Context, serviceID string, enable bool, reason string) error {
	var err error
	if enable {
		err = a.client.Agent().EnableServiceMaintenanceOpts(serviceID, reason, query(ctx))
	} else {
		err = a.client.Agent().DisableServiceMaintenanceOpts(serviceID, query(ctx))
	}
	if err != nil {
		return fmt.Errorf("toggle maintenance mode for %s: %w", serviceID, err)
	}
	return nil
}

func (a *apiAgent) HealthyServiceInstances(ctx context.Context, name string) ([]*api.ServiceEntry, error) {
	entries, _, err := a.client.Health().Service(name, "", true, query(ctx))
	if err != nil {
		return nil, fmt.Errorf("query healthy instances of %s: %w", name, err)
	}
	return entries, nil
}

func (a *apiAgent) GetValueAsString(ctx context.Context, key string) (string, bool, error) {
	pair, _, err := a.client.KV().Get(key, query(ctx))
	if err != nil {
		return "", false, fmt.Errorf("get key %s: %w", key, err)
	}
	if pair == nil {
		return "", false, nil
	}
	return string(pair.Value), true, nil
}
