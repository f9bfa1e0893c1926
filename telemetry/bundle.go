package telemetry

import (
	"fmt"

	"github.com/KOMKZ/go-yogan-consul/application"
	"github.com/samber/do/v2"
)

const configKey = "telemetry"

// Bundle 读取 telemetry 段并把 Manager 挂到应用生命周期
// 须在其他 Bundle 之前添加，保证 provider 先于它们启动、后于它们停止
type Bundle struct {
	opts []ManagerOption
}

// NewBundle 创建 Bundle
func NewBundle(opts ...ManagerOption) *Bundle {
	return &Bundle{opts: opts}
}

// Initialize 无需在配置加载前处理
func (b *Bundle) Initialize(*application.Bootstrap) {}

// Run 读取配置，启用时注册 Manager
func (b *Bundle) Run(app *application.Application) error {
	cfg := DefaultConfig()
	if loader := app.ConfigLoader(); loader.IsSet(configKey) {
		if err := loader.UnmarshalKey(configKey, &cfg); err != nil {
			return fmt.Errorf("parse telemetry config: %w", err)
		}
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = app.Name()
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = app.Version()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}

	m := NewManager(cfg, b.opts...)
	do.ProvideValue(app.Injector(), m)
	if cfg.Enabled {
		app.Manage(m)
	}
	return nil
}
