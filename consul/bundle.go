package consul

import (
	"fmt"

	"github.com/KOMKZ/go-yogan-consul/application"
	"github.com/KOMKZ/go-yogan-consul/config"
	"github.com/KOMKZ/go-yogan-consul/logger"
	"github.com/google/uuid"
	"github.com/hashicorp/consul/api"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
)

// AgentFactory 根据配置创建 Agent；client 可以为 nil（测试用 fake）
type AgentFactory func(cfg Config) (agent Agent, client *api.Client, err error)

// DefaultAgentFactory 使用 Config.BuildClient
func DefaultAgentFactory(cfg Config) (Agent, *api.Client, error) {
	client, err := cfg.BuildClient()
	if err != nil {
		return nil, nil, err
	}
	return NewAgent(client), client, nil
}

// Bundle 把 Consul 集成挂到 application.Application 上
//   - Initialize：以 KV 为数据源追加配置变量替换器
//   - Run：注册监听器、健康检查、注销管理器和 maintenance 任务
type Bundle struct {
	defaultServiceName      string
	strict                  bool
	substitutionInVariables bool
	endpoint                string
	aclToken                string
	configKey               string
	agentFactory            AgentFactory
	log                     *logger.CtxZapLogger
}

// BundleOption 选项
type BundleOption func(*Bundle)

// WithStrict KV 中不存在的变量视为错误
func WithStrict(strict bool) BundleOption {
	return func(b *Bundle) { b.strict = strict }
}

// WithSubstitutionInVariables 变量名内允许嵌套替换
func WithSubstitutionInVariables(enabled bool) BundleOption {
	return func(b *Bundle) { b.substitutionInVariables = enabled }
}

// WithAgentEndpoint 配置替换阶段连接的 agent 地址，默认 localhost:8500
func WithAgentEndpoint(endpoint string) BundleOption {
	return func(b *Bundle) { b.endpoint = endpoint }
}

// WithACLToken 配置替换阶段使用的 ACL token
func WithACLToken(token string) BundleOption {
	return func(b *Bundle) { b.aclToken = token }
}

// WithConfigKey 配置段名，默认 consul
func WithConfigKey(key string) BundleOption {
	return func(b *Bundle) { b.configKey = key }
}

// WithAgentFactory 替换 Agent 的创建方式
func WithAgentFactory(f AgentFactory) BundleOption {
	return func(b *Bundle) { b.agentFactory = f }
}

// NewBundle defaultServiceName 在配置未指定 service_name 时使用
func NewBundle(defaultServiceName string, opts ...BundleOption) *Bundle {
	b := &Bundle{
		defaultServiceName: defaultServiceName,
		endpoint:           DefaultEndpoint,
		configKey:          "consul",
		agentFactory:       DefaultAgentFactory,
		log:                logger.GetLogger("consul"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Initialize 连接 agent 失败时只告警，应用照常启动，只是不做 KV 替换
func (b *Bundle) Initialize(bootstrap *application.Bootstrap) {
	cfg := Config{Endpoint: b.endpoint, ACLToken: b.aclToken, ServicePing: true}
	cfg.ApplyDefaults()

	b.log.Debug("Connecting to Consul", zap.String("endpoint", cfg.Endpoint))
	agent, _, err := b.agentFactory(cfg)
	if err != nil {
		b.log.Warn(fmt.Sprintf("Unable to query Consul running on %s, disabling configuration substitution", cfg.Endpoint),
			zap.Error(err))
		return
	}
	bootstrap.AddSubstitutor(NewKVSubstitutor(agent, b.strict, b.substitutionInVariables))
}

// Run 读取 consul 配置段并挂载各组件
func (b *Bundle) Run(app *application.Application) error {
	cfg := DefaultConfig()
	if err := config.Bind(app.ConfigLoader(), b.configKey, &cfg); err != nil {
		return fmt.Errorf("invalid %s config: %w", b.configKey, err)
	}

	if !cfg.IsEnabled() {
		b.log.Warn("Consul bundle disabled.")
		return nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = b.defaultServiceName
	}
	return b.setup(app, cfg)
}

func (b *Bundle) setup(app *application.Application, cfg Config) error {
	agent, client, err := b.agentFactory(cfg)
	if err != nil {
		return fmt.Errorf("create consul agent: %w", err)
	}

	serviceID := cfg.ServiceID
	if serviceID == "" {
		serviceID = uuid.NewString()
	}
	advertiser := NewAdvertiser(cfg, agent, serviceID, WithLogger(b.log))

	var scheduler Scheduler
	if cfg.RetryInterval != nil {
		s, err := NewGocronScheduler()
		if err != nil {
			return err
		}
		scheduler = s
	}

	app.AddServerListener(NewServiceListener(advertiser, cfg.RetryInterval, scheduler))
	if err := app.RegisterHealthCheck(NewHealthCheck(agent)); err != nil {
		return err
	}
	app.Manage(NewAdvertiserManager(advertiser, scheduler))
	if err := app.RegisterTask(NewMaintenanceTask(agent, serviceID)); err != nil {
		return err
	}

	injector := app.Injector()
	do.ProvideValue(injector, agent)
	do.ProvideValue(injector, advertiser)
	if client != nil {
		do.ProvideValue(injector, client)
	}

	b.log.Debug("Consul bundle ready",
		zap.String("service", cfg.ServiceName),
		zap.String("service_id", serviceID),
		zap.String("endpoint", cfg.Endpoint))
	return nil
}
