// Package consul 将应用注册到 Consul agent
// 包含服务注册（带重试）、维护模式运维任务、agent 健康检查、KV 配置替换和负载均衡服务列表
package consul

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/consul/api"
)

const (
	// DefaultEndpoint 本机 agent 默认地址
	DefaultEndpoint = "localhost:8500"

	// HeaderConsulToken ACL token 请求头
	HeaderConsulToken = "X-Consul-Token"
)

// Config 对应配置文件中的 consul 段
type Config struct {
	Endpoint    string `mapstructure:"endpoint"` // host:port
	Enabled     *bool  `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	ServiceID   string `mapstructure:"service_id"`

	// 端口和地址覆盖，未配置时使用实际监听值
	ServicePort    *int   `mapstructure:"service_port"`
	AdminPort      *int   `mapstructure:"admin_port"`
	ServiceAddress string `mapstructure:"service_address"`
	ServiceSubnet  string `mapstructure:"service_subnet"` // CIDR，如 192.168.1.0/24

	// ServiceAddressSupplier 运行时提供地址，优先级最低
	ServiceAddressSupplier func() (string, error) `mapstructure:"-"`

	Tags        []string          `mapstructure:"tags"`
	ACLToken    string            `mapstructure:"acl_token"`
	ServiceMeta map[string]string `mapstructure:"service_meta"`
	ServicePing bool              `mapstructure:"service_ping"` // 创建客户端时 ping agent

	// RetryInterval 为 nil 时注册失败不重试
	RetryInterval      *time.Duration `mapstructure:"retry_interval"`
	CheckInterval      time.Duration  `mapstructure:"check_interval"`
	DeregisterInterval time.Duration  `mapstructure:"deregister_interval"`

	HealthCheckPath          string `mapstructure:"health_check_path"`
	HealthCheckSkipTLSVerify *bool  `mapstructure:"health_check_skip_tls_verify"`

	NetworkReadTimeout  time.Duration `mapstructure:"network_read_timeout"`
	NetworkWriteTimeout time.Duration `mapstructure:"network_write_timeout"`
}

// DefaultConfig 默认配置
// 重试间隔只能在这里给默认值，解析配置后 nil 表示关闭重试
func DefaultConfig() Config {
	retry := time.Second
	cfg := Config{RetryInterval: &retry}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults 填充零值
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 30 * time.Second
	}
	if c.DeregisterInterval <= 0 {
		c.DeregisterInterval = time.Minute
	}
}

// Validate 校验
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Endpoint, validation.Required, validation.By(hostPort)),
		validation.Field(&c.ServiceSubnet, validation.By(cidr)),
		validation.Field(&c.ServicePort, validation.NilOrNotEmpty, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.AdminPort, validation.NilOrNotEmpty, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.RetryInterval, validation.Min(time.Second)),
		validation.Field(&c.CheckInterval, validation.Min(time.Second)),
		validation.Field(&c.DeregisterInterval, validation.Min(time.Minute)),
		validation.Field(&c.NetworkReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.NetworkWriteTimeout, validation.Min(time.Duration(0))),
	)
}

func hostPort(value interface{}) error {
	s, _ := value.(string)
	if _, _, err := net.SplitHostPort(s); err != nil {
		return fmt.Errorf("must be host:port: %w", err)
	}
	return nil
}

func cidr(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, _, err := net.ParseCIDR(s); err != nil {
		return fmt.Errorf("must be a valid CIDR: %w", err)
	}
	return nil
}

// IsEnabled 未配置时默认启用
func (c Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// pingTimeout 创建客户端时 ping agent 的上限，未配置网络超时时 api 客户端不会自行超时
var pingTimeout = 10 * time.Second

// BuildClient 创建 Consul HTTP 客户端
// ACL token 同时作为客户端 token 和 X-Consul-Token 请求头发送
func (c Config) BuildClient() (*api.Client, error) {
	apiCfg := api.DefaultConfig()
	apiCfg.Address = c.Endpoint

	if c.NetworkReadTimeout > 0 || c.NetworkWriteTimeout > 0 {
		transport := apiCfg.Transport.Clone()
		transport.ResponseHeaderTimeout = c.NetworkReadTimeout
		apiCfg.Transport = transport
		apiCfg.HttpClient = &http.Client{
			Transport: transport,
			Timeout:   c.NetworkReadTimeout + c.NetworkWriteTimeout,
		}
	}

	if c.ACLToken != "" {
		apiCfg.Token = c.ACLToken
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client for %s: %w", c.Endpoint, err)
	}
	if c.ACLToken != "" {
		client.SetHeaders(http.Header{HeaderConsulToken: []string{c.ACLToken}})
	}

	if c.ServicePing {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		if err := NewAgent(client).Ping(ctx); err != nil {
			return nil, err
		}
	}
	return client, nil
}
