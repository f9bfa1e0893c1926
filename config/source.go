package config

// ConfigSource 配置数据源（文件、环境变量等）
type ConfigSource interface {
	// Name 数据源名称（用于日志）
	Name() string

	// Priority 优先级，数值越大越优先
	//   - 配置文件 config.yaml: 10
	//   - 环境配置文件 dev.yaml: 20
	//   - 环境变量: 50
	Priority() int

	// Load 返回点号分隔 key 的扁平 map，如 "consul.service_name"
	Load() (map[string]interface{}, error)
}

// MapSource 内存数据源，便于测试和代码内默认值
type MapSource struct {
	name     string
	priority int
	data     map[string]interface{}
}

// NewMapSource 创建内存数据源，data 可以是嵌套 map
func NewMapSource(name string, priority int, data map[string]interface{}) *MapSource {
	return &MapSource{name: name, priority: priority, data: data}
}

// Name 数据源名称
func (s *MapSource) Name() string { return "map:" + s.name }

// Priority 优先级
func (s *MapSource) Priority() int { return s.priority }

// Load 展平后返回
func (s *MapSource) Load() (map[string]interface{}, error) {
	return flattenMap("", s.data), nil
}
