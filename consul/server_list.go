package consul

import (
	"context"

	"github.com/KOMKZ/go-yogan-consul/balancer"
	"github.com/hashicorp/consul/api"
)

// ServiceDiscoverer 从 agent 查询服务实例
type ServiceDiscoverer interface {
	Discover(ctx context.Context, agent Agent) ([]*api.ServiceEntry, error)
}

// HealthyServiceDiscoverer 只查询健康检查通过的实例
type HealthyServiceDiscoverer struct {
	service string
}

// NewHealthyServiceDiscoverer 按服务名查询
func NewHealthyServiceDiscoverer(service string) *HealthyServiceDiscoverer {
	return &HealthyServiceDiscoverer{service: service}
}

// Discover 实现 ServiceDiscoverer
func (d *HealthyServiceDiscoverer) Discover(ctx context.Context, agent Agent) ([]*api.ServiceEntry, error) {
	return agent.HealthyServiceInstances(ctx, d.service)
}

// ServerList 将 Consul 服务实例转换为 balancer.Server，实现 balancer.ServerList
type ServerList struct {
	agent      Agent
	discoverer ServiceDiscoverer
}

// NewServerList 创建服务列表
func NewServerList(agent Agent, discoverer ServiceDiscoverer) *ServerList {
	return &ServerList{agent: agent, discoverer: discoverer}
}

// InitialServers 实现 balancer.ServerList
func (l *ServerList) InitialServers(ctx context.Context) ([]*balancer.Server, error) {
	return l.servers(ctx)
}

// UpdatedServers 实现 balancer.ServerList
func (l *ServerList) UpdatedServers(ctx context.Context) ([]*balancer.Server, error) {
	return l.servers(ctx)
}

func (l *ServerList) servers(ctx context.Context) ([]*balancer.Server, error) {
	entries, err := l.discoverer.Discover(ctx, l.agent)
	if err != nil {
		return nil, err
	}
	servers := make([]*balancer.Server, 0, len(entries))
	for _, entry := range entries {
		if entry == nil || entry.Service == nil {
			continue
		}
		servers = append(servers, toServer(entry))
	}
	return servers, nil
}

// toServer 服务地址为空时使用节点地址，区域取节点所在数据中心
func toServer(entry *api.ServiceEntry) *balancer.Server {
	s := &balancer.Server{
		Scheme:       entry.Service.Meta["scheme"],
		Host:         entry.Service.Address,
		Port:         entry.Service.Port,
		Zone:         balancer.UnknownZone,
		ReadyToServe: true,
	}
	if entry.Node != nil {
		if s.Host == "" {
			s.Host = entry.Node.Address
		}
		if entry.Node.Datacenter != "" {
			s.Zone = entry.Node.Datacenter
		}
	}
	return s
}
