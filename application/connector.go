package application

import (
	"context"
	"io"
)

// 连接器名称
const (
	ConnectorApplication = "application"
	ConnectorAdmin       = "admin"
)

// Connector 已绑定的监听端口
type Connector struct {
	Name      string
	Host      string
	Port      int
	Protocols []string // 例如 ["http/1.1"]，https 时包含 "ssl"
}

// ServerLifecycleListener 所有连接器绑定完成后回调
type ServerLifecycleListener interface {
	ServerStarted(connectors []Connector)
}

// ServerStartedFunc 函数适配
type ServerStartedFunc func(connectors []Connector)

// ServerStarted 实现 ServerLifecycleListener
func (f ServerStartedFunc) ServerStarted(connectors []Connector) { f(connectors) }

// Managed 随应用启停的对象：Start 按注册顺序，Stop 逆序
type Managed interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Task 管理端口上的运维任务，POST /tasks/{name}
type Task interface {
	Name() string
	Execute(ctx context.Context, params map[string][]string, w io.Writer) error
}
