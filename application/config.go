package application

import (
	"errors"
	"time"

	"github.com/KOMKZ/go-yogan-consul/health"
	"github.com/KOMKZ/go-yogan-consul/logger"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// AppConfig 框架级配置，业务配置由各 Bundle 自行读取
type AppConfig struct {
	Server     ServerConfig          `mapstructure:"server"`
	Logger     *logger.ManagerConfig `mapstructure:"logger,omitempty"`
	Middleware *MiddlewareConfig     `mapstructure:"middleware,omitempty"`
	Health     health.Config         `mapstructure:"health"`
}

// ServerConfig 两个连接器：业务端口与管理端口
type ServerConfig struct {
	Application     ConnectorConfig `mapstructure:"application"`
	Admin           ConnectorConfig `mapstructure:"admin"`
	Mode            string          `mapstructure:"mode"` // debug, release, test
	Tracing         bool            `mapstructure:"tracing"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
}

// ConnectorConfig 单个监听端口
// Port 为 0 时由系统分配，ServerStarted 拿到的是实际端口
type ConnectorConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	CertFile     string        `mapstructure:"cert_file"`
	KeyFile      string        `mapstructure:"key_file"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// TLS 是否启用 https
func (c ConnectorConfig) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// Validate 校验
func (c ConnectorConfig) Validate() error {
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("cert_file and key_file must be set together")
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
	)
}

// MiddlewareConfig 中间件开关
type MiddlewareConfig struct {
	TraceID    *TraceIDConfig    `mapstructure:"trace_id,omitempty"`
	RequestLog *RequestLogConfig `mapstructure:"request_log,omitempty"`
}

// TraceIDConfig TraceID 中间件
type TraceIDConfig struct {
	Enable               bool   `mapstructure:"enable"`
	TraceIDKey           string `mapstructure:"trace_id_key"`
	TraceIDHeader        string `mapstructure:"trace_id_header"`
	EnableResponseHeader bool   `mapstructure:"enable_response_header"`
}

// RequestLogConfig 请求日志中间件
type RequestLogConfig struct {
	Enable    bool     `mapstructure:"enable"`
	SkipPaths []string `mapstructure:"skip_paths"`
}

// DefaultAppConfig 默认配置：业务 8080，管理 8081
// 端口 0 合法，只能在解析配置前给出默认值
func DefaultAppConfig() AppConfig {
	cfg := AppConfig{}
	cfg.Server.Application.Port = 8080
	cfg.Server.Admin.Port = 8081
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults 填充零值
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logger != nil {
		c.Logger.ApplyDefaults()
	}
	c.Health.ApplyDefaults()
}

// Validate 校验
func (c AppConfig) Validate() error {
	err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Application),
		validation.Field(&c.Server.Admin),
		validation.Field(&c.Server.Mode, validation.In("debug", "release", "test")),
	)
	if err != nil {
		return err
	}
	if c.Logger != nil {
		if err := c.Logger.Validate(); err != nil {
			return err
		}
	}
	return c.Health.Validate()
}
