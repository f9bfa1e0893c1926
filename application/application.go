// Package application 应用启动框架
// 一个应用包含业务端口和管理端口两个 gin 服务，Bundle 在启动前挂载各自的能力
package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/KOMKZ/go-yogan-consul/config"
	"github.com/KOMKZ/go-yogan-consul/health"
	"github.com/KOMKZ/go-yogan-consul/logger"
	"github.com/KOMKZ/go-yogan-consul/middleware"
	"github.com/gin-gonic/gin"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AppState 应用状态
type AppState int

const (
	StateInit AppState = iota
	StateSetup
	StateRunning
	StateStopping
	StateStopped
)

// String 状态名
func (s AppState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateSetup:
		return "Setup"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Option 应用选项
type Option func(*Application)

// WithConfigPath 配置目录（config.yaml 与 <env>.yaml）
func WithConfigPath(path string) Option {
	return func(a *Application) { a.configPath = path }
}

// WithEnvPrefix 环境变量前缀
func WithEnvPrefix(prefix string) Option {
	return func(a *Application) { a.envPrefix = prefix }
}

// WithConfigSource 追加配置源，测试中常用 config.NewMapSource
func WithConfigSource(src config.ConfigSource) Option {
	return func(a *Application) { a.sources = append(a.sources, src) }
}

// WithVersion 版本号，启动日志中输出
func WithVersion(version string) Option {
	return func(a *Application) { a.version = version }
}

// Application 应用
type Application struct {
	name       string
	version    string
	configPath string
	envPrefix  string
	sources    []config.ConfigSource

	bundles []Bundle
	onSetup []func(*Application) error

	injector *do.RootScope
	loader   *config.Loader
	cfg      AppConfig
	log      *logger.CtxZapLogger

	appServer   *HTTPServer
	adminServer *HTTPServer
	health      *health.Aggregator
	tasks       *TaskRegistry
	listeners   []ServerLifecycleListener
	managed     []Managed
	started     []Managed

	mu    sync.RWMutex
	state AppState
}

// New 创建应用
func New(name string, opts ...Option) *Application {
	a := &Application{
		name:     name,
		injector: do.New(),
		tasks:    NewTaskRegistry(),
		log:      logger.GetLogger("application"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddBundle 添加 Bundle，须在 Setup 前调用
func (a *Application) AddBundle(b Bundle) *Application {
	a.bundles = append(a.bundles, b)
	return a
}

// OnSetup Bundle 运行之后、端口绑定之前的回调，通常在这里注册业务路由
func (a *Application) OnSetup(fn func(*Application) error) *Application {
	a.onSetup = append(a.onSetup, fn)
	return a
}

// Setup 加载配置、创建服务器、运行 Bundle
func (a *Application) Setup() error {
	if a.State() != StateInit {
		return nil
	}

	builder := config.NewLoaderBuilder().WithConfigPath(a.configPath).WithEnvPrefix(a.envPrefix)
	for _, src := range a.sources {
		builder.WithSource(src)
	}
	bootstrap := &Bootstrap{Name: a.name, ConfigBuilder: builder}
	for _, b := range a.bundles {
		b.Initialize(bootstrap)
	}

	loader, err := builder.Build()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.loader = loader

	a.cfg = DefaultAppConfig()
	if err := loader.Unmarshal(&a.cfg); err != nil {
		return fmt.Errorf("parse app config: %w", err)
	}
	a.cfg.ApplyDefaults()
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid app config: %w", err)
	}

	if a.cfg.Logger != nil {
		if a.cfg.Logger.AppName == "" {
			a.cfg.Logger.AppName = a.name
		}
		logger.InitManager(*a.cfg.Logger)
		a.log = logger.GetLogger("application")
	}
	gin.SetMode(a.cfg.Server.Mode)
	gin.DefaultWriter = logger.NewGinLogWriter("gin-http")
	gin.DefaultErrorWriter = logger.NewGinLogWriter("gin-error")

	a.health = health.NewAggregator(a.cfg.Health.Timeout)
	a.health.SetMetadata("service", a.name)
	if a.version != "" {
		a.health.SetMetadata("version", a.version)
	}

	a.appServer = NewHTTPServer(ConnectorApplication, a.cfg.Server.Application,
		newEngine(a.name, a.cfg.Server, a.cfg.Middleware))
	a.adminServer = NewHTTPServer(ConnectorAdmin, a.cfg.Server.Admin,
		newEngine(a.name+"-admin", a.cfg.Server, a.cfg.Middleware))
	middleware.RegisterHealthRoutes(a.adminServer.Engine(), a.health)
	a.registerAdminRoutes(a.adminServer.Engine())

	do.ProvideValue(a.injector, a.loader)
	do.ProvideValue(a.injector, a.health)
	do.ProvideValue(a.injector, a)

	a.setState(StateSetup)

	for _, b := range a.bundles {
		if err := b.Run(a); err != nil {
			return fmt.Errorf("run bundle %T: %w", b, err)
		}
	}
	for _, fn := range a.onSetup {
		if err := fn(a); err != nil {
			return fmt.Errorf("onSetup failed: %w", err)
		}
	}
	return nil
}

// Start 启动 Managed 对象并绑定两个端口，全部就绪后通知 ServerLifecycleListener
func (a *Application) Start(ctx context.Context) error {
	if err := a.Setup(); err != nil {
		return err
	}

	for _, m := range a.managed {
		if err := m.Start(ctx); err != nil {
			a.stopManaged(ctx)
			return fmt.Errorf("start managed %T: %w", m, err)
		}
		a.started = append(a.started, m)
	}

	var g errgroup.Group
	g.Go(a.appServer.Start)
	g.Go(a.adminServer.Start)
	if err := g.Wait(); err != nil {
		a.shutdownServers(ctx)
		a.stopManaged(ctx)
		return err
	}

	a.setState(StateRunning)
	connectors := []Connector{a.appServer.Connector(), a.adminServer.Connector()}

	fields := []zap.Field{
		zap.String("name", a.name),
		zap.Int("application_port", connectors[0].Port),
		zap.Int("admin_port", connectors[1].Port),
	}
	if a.version != "" {
		fields = append(fields, zap.String("version", a.version))
	}
	a.log.InfoCtx(ctx, "Application started", fields...)

	for _, l := range a.listeners {
		l.ServerStarted(connectors)
	}
	return nil
}

// Run 启动并阻塞直到 ctx 结束或服务异常退出，然后优雅关闭
func (a *Application) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Debug("Context cancelled, starting graceful shutdown")
	case runErr = <-a.appServer.Errors():
	case runErr = <-a.adminServer.Errors():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.Stop(stopCtx))
}

// Stop 关闭端口，逆序停止 Managed 对象，关闭 DI 容器
func (a *Application) Stop(ctx context.Context) error {
	if s := a.State(); s == StateStopping || s == StateStopped {
		return nil
	}
	a.setState(StateStopping)

	err := a.shutdownServers(ctx)
	a.stopManaged(ctx)

	if shutdownErr := a.injector.Shutdown(); shutdownErr != nil {
		a.log.WarnCtx(ctx, "DI container shutdown reported errors", zap.Error(shutdownErr))
	}

	a.setState(StateStopped)
	a.log.InfoCtx(ctx, "Application stopped", zap.String("name", a.name))
	return err
}

func (a *Application) shutdownServers(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range []*HTTPServer{a.appServer, a.adminServer} {
		if s == nil {
			continue
		}
		g.Go(func() error { return s.Shutdown(gctx) })
	}
	return g.Wait()
}

func (a *Application) stopManaged(ctx context.Context) {
	for i := len(a.started) - 1; i >= 0; i-- {
		m := a.started[i]
		if err := m.Stop(ctx); err != nil {
			a.log.ErrorCtx(ctx, "Stop managed object failed", zap.String("type", fmt.Sprintf("%T", m)), zap.Error(err))
		}
	}
	a.started = nil
}

// Manage 注册 Managed 对象
func (a *Application) Manage(m Managed) {
	a.managed = append(a.managed, m)
}

// AddServerListener 注册端口绑定完成的监听器
func (a *Application) AddServerListener(l ServerLifecycleListener) {
	a.listeners = append(a.listeners, l)
}

// RegisterTask 注册管理端口上的运维任务
func (a *Application) RegisterTask(t Task) error {
	return a.tasks.Register(t)
}

// RegisterHealthCheck 注册健康检查项
func (a *Application) RegisterHealthCheck(c health.Checker) error {
	if a.health == nil {
		return errors.New("health checks are available after Setup")
	}
	return a.health.Register(c)
}

// Name 应用名
func (a *Application) Name() string { return a.name }

// Version 版本号，未设置时为空
func (a *Application) Version() string { return a.version }

// Config 框架配置
func (a *Application) Config() AppConfig { return a.cfg }

// ConfigLoader 配置加载器，Setup 后可用
func (a *Application) ConfigLoader() *config.Loader { return a.loader }

// Injector DI 容器
func (a *Application) Injector() *do.RootScope { return a.injector }

// Router 业务端口路由
func (a *Application) Router() *gin.Engine { return a.appServer.Engine() }

// AdminRouter 管理端口路由
func (a *Application) AdminRouter() *gin.Engine { return a.adminServer.Engine() }

// HealthChecks 健康检查聚合器
func (a *Application) HealthChecks() *health.Aggregator { return a.health }

// Connectors 已绑定的连接器，Start 前端口为配置值
func (a *Application) Connectors() []Connector {
	if a.appServer == nil {
		return nil
	}
	return []Connector{a.appServer.Connector(), a.adminServer.Connector()}
}

// State 当前状态
func (a *Application) State() AppState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Application) setState(state AppState) {
	a.mu.Lock()
	old := a.state
	a.state = state
	a.mu.Unlock()
	a.log.Debug("State changed", zap.String("from", old.String()), zap.String("to", state.String()))
}
