package httpclient

import (
	"crypto/tls"
	"net/http"
	"time"
)

// config 客户端配置
type config struct {
	timeout       time.Duration
	transport     http.RoundTripper
	headers       map[string]string
	beforeRequest func(*http.Request) error
}

// Option 客户端选项
type Option func(*config)

// WithTimeout 单次请求超时，默认 30s，0 表示不限制
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithHeader 默认 Header，请求自身的同名 Header 优先
func WithHeader(key, value string) Option {
	return func(c *config) {
		c.headers[key] = value
	}
}

// WithInsecureSkipVerify 跳过 TLS 校验，仅限开发环境
func WithInsecureSkipVerify() Option {
	return func(c *config) {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		c.transport = t
	}
}

// WithBeforeRequest 发送前钩子，返回错误则放弃请求
func WithBeforeRequest(fn func(*http.Request) error) Option {
	return func(c *config) {
		c.beforeRequest = fn
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{
		timeout: 30 * time.Second,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.transport == nil {
		cfg.transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	return cfg
}
