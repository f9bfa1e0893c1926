// Package lbclient 基于 Consul 服务列表的负载均衡 HTTP 客户端
// 每次请求从 balancer 选一个实例，把 URL 的 scheme/host/port 换成该实例后交给 httpclient 发送
package lbclient

import (
	"net/http"
	"time"

	"github.com/KOMKZ/go-yogan-consul/balancer"
	"github.com/KOMKZ/go-yogan-consul/errcode"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrNoAvailableServers balancer 中没有可用实例
var ErrNoAvailableServers = errcode.Register(errcode.New(32, 1, "lbclient", "error.lbclient.no_available_servers",
	"no available servers", http.StatusServiceUnavailable))

// Config 对应配置文件中的 client 段
type Config struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
	LocalZone       string        `mapstructure:"local_zone"`

	// Rule 实例选择规则：weighted_response_time（默认）或 round_robin
	Rule string `mapstructure:"rule"`

	// MaxAttemptsNextServer 失败后换实例重试的次数
	MaxAttemptsNextServer int `mapstructure:"max_attempts_next_server"`

	InsecureSkipVerify bool              `mapstructure:"insecure_skip_verify"`
	Headers            map[string]string `mapstructure:"headers"`
}

// DefaultConfig 刷新间隔 10s，按响应时间加权，传输失败换一个实例重试一次
func DefaultConfig() Config {
	cfg := Config{MaxAttemptsNextServer: 1}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults 填充零值
func (c *Config) ApplyDefaults() {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 10 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Rule == "" {
		c.Rule = balancer.RuleWeightedResponseTime
	}
}

// Validate 校验
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RefreshInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Timeout, validation.Min(time.Millisecond)),
		validation.Field(&c.MaxAttemptsNextServer, validation.Min(0), validation.Max(10)),
		validation.Field(&c.Rule, validation.In(balancer.RuleWeightedResponseTime, balancer.RuleRoundRobin)),
	)
}
