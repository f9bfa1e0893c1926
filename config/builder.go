package config

import (
	"os"
	"path/filepath"
)

// LoaderBuilder 加载器构建器
type LoaderBuilder struct {
	configPath   string
	envPrefix    string
	envBindings  map[string]string
	sources      []ConfigSource
	substitutors []*Substitutor
}

// NewLoaderBuilder 创建构建器
func NewLoaderBuilder() *LoaderBuilder {
	return &LoaderBuilder{envBindings: make(map[string]string)}
}

// WithConfigPath 配置目录（读取 config.yaml 和 <env>.yaml）
func (b *LoaderBuilder) WithConfigPath(path string) *LoaderBuilder {
	b.configPath = path
	return b
}

// WithEnvPrefix 环境变量前缀
func (b *LoaderBuilder) WithEnvPrefix(prefix string) *LoaderBuilder {
	b.envPrefix = prefix
	return b
}

// WithEnvBinding 显式绑定环境变量
func (b *LoaderBuilder) WithEnvBinding(key, envKey string) *LoaderBuilder {
	b.envBindings[key] = envKey
	return b
}

// WithSource 追加自定义数据源
func (b *LoaderBuilder) WithSource(source ConfigSource) *LoaderBuilder {
	b.sources = append(b.sources, source)
	return b
}

// WithSubstitutor 追加变量替换器，多次调用按顺序串联
func (b *LoaderBuilder) WithSubstitutor(s *Substitutor) *LoaderBuilder {
	if s != nil {
		b.substitutors = append(b.substitutors, s)
	}
	return b
}

// Build 构建并加载
func (b *LoaderBuilder) Build() (*Loader, error) {
	loader := NewLoader()

	if b.configPath != "" {
		loader.AddSource(NewFileSource(filepath.Join(b.configPath, "config.yaml"), 10))
		if env := GetEnv(); env != "" {
			loader.AddSource(NewFileSource(filepath.Join(b.configPath, env+".yaml"), 20))
		}
	}

	if b.envPrefix != "" || len(b.envBindings) > 0 {
		envSource := NewEnvSource(b.envPrefix, 50)
		for key, envKey := range b.envBindings {
			envSource.AddBinding(key, envKey)
		}
		loader.AddSource(envSource)
	}

	for _, s := range b.sources {
		loader.AddSource(s)
	}
	for _, s := range b.substitutors {
		loader.AddSubstitutor(s)
	}

	if err := loader.Load(); err != nil {
		return nil, err
	}
	return loader, nil
}

// GetEnv 运行环境（APP_ENV > ENV > dev）
func GetEnv() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "dev"
}
