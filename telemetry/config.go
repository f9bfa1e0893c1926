// Package telemetry OpenTelemetry 链路与指标
// 启用后设置全局 TracerProvider 和 MeterProvider，otelgin 中间件、consul 和 balancer 的指标都通过全局 provider 上报
package telemetry

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// 导出类型
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
	ExporterNoop   = "noop"
)

// Config 对应配置文件中的 telemetry 段
type Config struct {
	Enabled        bool              `mapstructure:"enabled"`
	ServiceName    string            `mapstructure:"service_name"` // 为空时使用应用名
	ServiceVersion string            `mapstructure:"service_version"`
	Exporter       ExporterConfig    `mapstructure:"exporter"`
	Sampler        SamplerConfig     `mapstructure:"sampler"`
	Batch          BatchConfig       `mapstructure:"batch"`
	ResourceAttrs  map[string]string `mapstructure:"resource_attributes"`
	Metrics        MetricsConfig     `mapstructure:"metrics"`
}

// ExporterConfig 链路和指标共用的导出配置
type ExporterConfig struct {
	Type     string            `mapstructure:"type"`     // otlp, stdout, noop
	Endpoint string            `mapstructure:"endpoint"` // otlp gRPC 地址
	Insecure bool              `mapstructure:"insecure"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	Headers  map[string]string `mapstructure:"headers"`
}

// SamplerConfig 采样
type SamplerConfig struct {
	Type  string  `mapstructure:"type"` // always_on, always_off, trace_id_ratio, parent_based_always_on
	Ratio float64 `mapstructure:"ratio"`
}

// BatchConfig 批量导出，关闭时同步导出（调试用）
type BatchConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxQueueSize  int           `mapstructure:"max_queue_size"`
	ScheduleDelay time.Duration `mapstructure:"schedule_delay"`
	ExportTimeout time.Duration `mapstructure:"export_timeout"`
}

// MetricsConfig 指标，按 ExportInterval 周期导出
type MetricsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ExportInterval time.Duration `mapstructure:"export_interval"`
	ExportTimeout  time.Duration `mapstructure:"export_timeout"`
}

// DefaultConfig 默认关闭
func DefaultConfig() Config {
	return Config{
		Exporter: ExporterConfig{
			Type:     ExporterOTLP,
			Endpoint: "localhost:4317",
			Insecure: true,
			Timeout:  10 * time.Second,
		},
		Sampler: SamplerConfig{Type: "parent_based_always_on", Ratio: 1},
		Batch: BatchConfig{
			Enabled:       true,
			MaxQueueSize:  2048,
			ScheduleDelay: 5 * time.Second,
			ExportTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			ExportInterval: 30 * time.Second,
			ExportTimeout:  10 * time.Second,
		},
	}
}

// Validate 未启用时不校验
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.ServiceName, validation.Required),
		validation.Field(&c.Exporter),
		validation.Field(&c.Sampler),
		validation.Field(&c.Metrics),
	)
}

// Validate 校验
func (e ExporterConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Type, validation.Required, validation.In(ExporterOTLP, ExporterStdout, ExporterNoop)),
		validation.Field(&e.Endpoint, validation.When(e.Type == ExporterOTLP, validation.Required)),
	)
}

// Validate 校验
func (s SamplerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Type, validation.In("always_on", "always_off", "trace_id_ratio", "parent_based_always_on")),
		validation.Field(&s.Ratio, validation.When(s.Type == "trace_id_ratio", validation.Min(0.0), validation.Max(1.0))),
	)
}

// Validate 校验
func (m MetricsConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.ExportInterval, validation.When(m.Enabled, validation.Required, validation.Min(time.Second))),
	)
}
