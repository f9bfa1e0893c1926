package config

import "fmt"

// Validator 配置校验接口（各配置结构实现）
type Validator interface {
	Validate() error
}

// DefaultsApplier 零值填充接口
type DefaultsApplier interface {
	ApplyDefaults()
}

// Bind 解析配置段 -> 填充默认值 -> 校验
// loader 为 nil 或配置段不存在时保留 target 原值
//
//	var cfg consul.Config
//	if err := config.Bind(loader, "consul", &cfg); err != nil { ... }
func Bind(loader *Loader, key string, target interface{}) error {
	if loader != nil && loader.IsSet(key) {
		if err := loader.UnmarshalKey(key, target); err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
	}
	if d, ok := target.(DefaultsApplier); ok {
		d.ApplyDefaults()
	}
	if v, ok := target.(Validator); ok {
		return v.Validate()
	}
	return nil
}
