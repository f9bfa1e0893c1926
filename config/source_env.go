package config

import (
	"os"
	"strings"
)

// EnvSource 环境变量数据源
type EnvSource struct {
	prefix   string            // 如 "HELLO"
	priority int
	bindings map[string]string // 显式映射，如 "consul.service_name" -> "CONSUL_SERVICE_NAME"
}

// NewEnvSource 创建环境变量数据源
func NewEnvSource(prefix string, priority int) *EnvSource {
	return &EnvSource{
		prefix:   prefix,
		priority: priority,
		bindings: make(map[string]string),
	}
}

// AddBinding 添加显式映射
// 前缀扫描会把 _ 转成 .，带下划线的 key 需要显式绑定
func (s *EnvSource) AddBinding(key, envKey string) *EnvSource {
	s.bindings[key] = envKey
	return s
}

// Name 数据源名称
func (s *EnvSource) Name() string {
	return "env:" + s.prefix
}

// Priority 优先级
func (s *EnvSource) Priority() int {
	return s.priority
}

// Load 先扫描前缀变量，再应用显式映射（显式映射优先）
func (s *EnvSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{})

	if s.prefix != "" {
		prefix := s.prefix + "_"
		for _, env := range os.Environ() {
			key, value, ok := strings.Cut(env, "=")
			if !ok || !strings.HasPrefix(key, prefix) {
				continue
			}
			// HELLO_CONSUL_ENDPOINT -> consul.endpoint
			configKey := strings.ToLower(strings.TrimPrefix(key, prefix))
			result[strings.ReplaceAll(configKey, "_", ".")] = value
		}
	}

	for key, envKey := range s.bindings {
		full := envKey
		if s.prefix != "" && !strings.HasPrefix(envKey, s.prefix+"_") {
			full = s.prefix + "_" + envKey
		}
		if value, ok := os.LookupEnv(full); ok && value != "" {
			result[key] = value
		}
	}

	return result, nil
}
