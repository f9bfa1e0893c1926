// Package balancer 动态服务列表负载均衡
// 服务列表由 ServerList 定期刷新，选择时优先本区域的可用实例，轮询返回
package balancer

import (
	"context"
	"net"
	"strconv"
)

// UnknownZone 实例未声明区域
const UnknownZone = "UNKNOWN"

// Server 一个可调用的后端实例
type Server struct {
	Scheme       string `json:"scheme,omitempty"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Zone         string `json:"zone"`
	ReadyToServe bool   `json:"ready_to_serve"`
}

// HostPort host:port
func (s *Server) HostPort() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// String 调试输出
func (s *Server) String() string {
	if s.Scheme == "" {
		return s.HostPort()
	}
	return s.Scheme + "://" + s.HostPort()
}

// ServerList 服务列表数据源
type ServerList interface {
	InitialServers(ctx context.Context) ([]*Server, error)
	UpdatedServers(ctx context.Context) ([]*Server, error)
}

// ServerListFunc 用同一个函数提供初始列表和更新列表
type ServerListFunc func(ctx context.Context) ([]*Server, error)

// InitialServers 实现 ServerList
func (f ServerListFunc) InitialServers(ctx context.Context) ([]*Server, error) { return f(ctx) }

// UpdatedServers 实现 ServerList
func (f ServerListFunc) UpdatedServers(ctx context.Context) ([]*Server, error) { return f(ctx) }
