package application

import (
	"github.com/KOMKZ/go-yogan-consul/config"
)

// Bundle 可插拔模块
// Initialize 在配置加载前调用，可以向 Bootstrap 追加配置源或变量替换器
// Run 在配置加载、服务器创建之后、端口绑定之前调用
type Bundle interface {
	Initialize(bootstrap *Bootstrap)
	Run(app *Application) error
}

// Bootstrap 配置加载前的启动上下文
type Bootstrap struct {
	Name          string
	ConfigBuilder *config.LoaderBuilder
}

// AddSubstitutor 追加配置变量替换器，按添加顺序串联
func (b *Bootstrap) AddSubstitutor(s *config.Substitutor) {
	b.ConfigBuilder.WithSubstitutor(s)
}
