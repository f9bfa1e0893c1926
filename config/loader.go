package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Loader 多数据源配置加载器
// 按优先级合并所有数据源，合并后对字符串值做变量替换，再同步到 Viper
type Loader struct {
	sources      []ConfigSource
	substitutors []*Substitutor
	mergedConfig map[string]interface{}
	v            *viper.Viper
	loadedFiles  []string
}

// NewLoader 创建加载器
func NewLoader() *Loader {
	return &Loader{
		mergedConfig: make(map[string]interface{}),
		v:            viper.New(),
	}
}

// AddSource 添加数据源
func (l *Loader) AddSource(source ConfigSource) {
	l.sources = append(l.sources, source)
}

// AddSubstitutor 添加变量替换器，按添加顺序依次应用
func (l *Loader) AddSubstitutor(s *Substitutor) {
	if s != nil {
		l.substitutors = append(l.substitutors, s)
	}
}

// Load 加载并合并所有数据源
func (l *Loader) Load() error {
	sort.SliceStable(l.sources, func(i, j int) bool {
		return l.sources[i].Priority() < l.sources[j].Priority()
	})

	merged := make(map[string]interface{})
	l.loadedFiles = l.loadedFiles[:0]
	for _, source := range l.sources {
		data, err := source.Load()
		if err != nil {
			return fmt.Errorf("load source %s: %w", source.Name(), err)
		}
		if fs, ok := source.(*FileSource); ok && len(data) > 0 {
			l.loadedFiles = append(l.loadedFiles, fs.path)
		}
		for key, value := range data {
			merged[key] = value
		}
	}

	for key, value := range merged {
		replaced, err := l.substitute(value)
		if err != nil {
			return fmt.Errorf("substitute %s: %w", key, err)
		}
		merged[key] = replaced
	}

	l.mergedConfig = merged
	l.v = viper.New()
	for key, value := range unflattenMap(merged) {
		l.v.Set(key, value)
	}
	return nil
}

// substitute 只处理字符串和字符串切片
func (l *Loader) substitute(value interface{}) (interface{}, error) {
	if len(l.substitutors) == 0 {
		return value, nil
	}
	switch v := value.(type) {
	case string:
		return l.substituteString(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			r, err := l.substitute(item)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			r, err := l.substituteString(item)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return value, nil
	}
}

func (l *Loader) substituteString(s string) (string, error) {
	var err error
	for _, sub := range l.substitutors {
		if s, err = sub.Replace(s); err != nil {
			return "", err
		}
	}
	return s, nil
}

// unflattenMap {"consul.endpoint": "x"} -> {"consul": {"endpoint": "x"}}
func unflattenMap(flat map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for key, value := range flat {
		parts := strings.Split(key, ".")
		current := result
		for _, p := range parts[:len(parts)-1] {
			if p == "" {
				continue
			}
			next, ok := current[p].(map[string]interface{})
			if !ok {
				next = make(map[string]interface{})
				current[p] = next
			}
			current = next
		}
		current[parts[len(parts)-1]] = value
	}
	return result
}

// Unmarshal 解析全部配置到结构体
func (l *Loader) Unmarshal(v interface{}) error {
	return l.v.Unmarshal(v)
}

// UnmarshalKey 解析某个配置段到结构体，如 UnmarshalKey("consul", &cfg)
func (l *Loader) UnmarshalKey(key string, v interface{}) error {
	return l.v.UnmarshalKey(key, v)
}

// Get 获取配置值
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString 获取字符串配置
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// GetInt 获取整数配置
func (l *Loader) GetInt(key string) int {
	return l.v.GetInt(key)
}

// GetBool 获取布尔配置
func (l *Loader) GetBool(key string) bool {
	return l.v.GetBool(key)
}

// IsSet 配置项是否存在
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings 全部配置（嵌套 map）
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}

// GetLoadedFiles 实际读到内容的配置文件
func (l *Loader) GetLoadedFiles() []string {
	return l.loadedFiles
}

// Reload 重新加载
func (l *Loader) Reload() error {
	return l.Load()
}
