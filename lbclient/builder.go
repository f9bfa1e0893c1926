package lbclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/KOMKZ/go-yogan-consul/application"
	"github.com/KOMKZ/go-yogan-consul/balancer"
	"github.com/KOMKZ/go-yogan-consul/consul"
	"github.com/KOMKZ/go-yogan-consul/httpclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Lifecycle 接收随应用停止而关闭的客户端，*application.Application 实现了它
type Lifecycle interface {
	Manage(m application.Managed)
}

// Builder 创建负载均衡客户端并挂到应用生命周期上
type Builder struct {
	lifecycle Lifecycle
	agent     consul.Agent
	cfg       Config
}

// NewBuilder cfg 会先填充默认值
func NewBuilder(lifecycle Lifecycle, agent consul.Agent, cfg Config) *Builder {
	cfg.ApplyDefaults()
	return &Builder{lifecycle: lifecycle, agent: agent, cfg: cfg}
}

// Build 从 Consul 查询名为 name 的健康实例
func (b *Builder) Build(name string) (*Client, error) {
	return b.BuildWith(name, consul.NewHealthyServiceDiscoverer(name), nil)
}

// BuildWith 自定义实例发现方式和底层 HTTP 客户端，delegate 为 nil 时按配置创建
func (b *Builder) BuildWith(name string, discoverer consul.ServiceDiscoverer, delegate *httpclient.Client) (*Client, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	if delegate == nil {
		delegate = b.newDelegate()
	}

	lb := balancer.New(name, consul.NewServerList(b.agent, discoverer),
		balancer.WithRefreshInterval(b.cfg.RefreshInterval),
		balancer.WithLocalZone(b.cfg.LocalZone),
		balancer.WithRule(b.cfg.Rule))
	if err := lb.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("start balancer %s: %w", name, err)
	}

	client := NewClient(lb, delegate, b.cfg.MaxAttemptsNextServer)
	b.lifecycle.Manage(closeOnStop{client: client})
	return client, nil
}

func (b *Builder) newDelegate() *httpclient.Client {
	opts := []httpclient.Option{
		httpclient.WithTimeout(b.cfg.Timeout),
		httpclient.WithBeforeRequest(injectTraceContext),
	}
	for k, v := range b.cfg.Headers {
		opts = append(opts, httpclient.WithHeader(k, v))
	}
	if b.cfg.InsecureSkipVerify {
		opts = append(opts, httpclient.WithInsecureSkipVerify())
	}
	return httpclient.NewClient(opts...)
}

// injectTraceContext 把当前 span 按全局 propagator 写入请求头
func injectTraceContext(r *http.Request) error {
	otel.GetTextMapPropagator().Inject(r.Context(), propagation.HeaderCarrier(r.Header))
	return nil
}

// closeOnStop 应用停止时关闭客户端
type closeOnStop struct {
	client *Client
}

func (c closeOnStop) Start(context.Context) error { return nil }

func (c closeOnStop) Stop(context.Context) error { return c.client.Close() }
