package main

import (
	"fmt"

	"github.com/KOMKZ/go-yogan-consul/application"
	"github.com/KOMKZ/go-yogan-consul/config"
	"github.com/KOMKZ/go-yogan-consul/consul"
	"github.com/KOMKZ/go-yogan-consul/lbclient"
	"github.com/KOMKZ/go-yogan-consul/logger"
	"github.com/KOMKZ/go-yogan-consul/telemetry"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
)

// helloConfig 业务配置
type helloConfig struct {
	Template    string `mapstructure:"template"`
	DefaultName string `mapstructure:"default_name"`
}

func defaultHelloConfig() helloConfig {
	return helloConfig{
		Template:    "Hello, %s!",
		DefaultName: "Stranger",
	}
}

func newApp(opts serveOptions, extra ...application.Option) *application.Application {
	appOpts := append([]application.Option{
		application.WithConfigPath(opts.ConfigDir),
		application.WithEnvPrefix(opts.EnvPrefix),
		application.WithVersion(version),
	}, extra...)

	return newAppWithBundle(consul.NewBundle(serviceName,
		consul.WithStrict(false),
		consul.WithSubstitutionInVariables(true),
	), appOpts...)
}

func newAppWithBundle(bundle application.Bundle, opts ...application.Option) *application.Application {
	return application.New(serviceName, opts...).
		AddBundle(telemetry.NewBundle()).
		AddBundle(bundle).
		OnSetup(setupRoutes)
}

func setupRoutes(app *application.Application) error {
	log := logger.GetLogger("helloworld")

	cfg := defaultHelloConfig()
	if err := app.ConfigLoader().Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parse hello config: %w", err)
	}

	router := app.Router()
	router.GET("/hello-world", newHelloWorldResource(cfg.Template, cfg.DefaultName).sayHello)

	// consul 关闭时 bundle 不会注入 Agent
	agent, err := do.Invoke[consul.Agent](app.Injector())
	if err != nil {
		log.Warn("Consul agent not available, skipping discovery routes", zap.Error(err))
		return nil
	}

	clientCfg := lbclient.DefaultConfig()
	if err := config.Bind(app.ConfigLoader(), "client", &clientCfg); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}
	client, err := lbclient.NewBuilder(app, agent, clientCfg).Build(serviceName)
	if err != nil {
		return err
	}
	res := &discoveryResource{agent: agent, client: client}
	router.GET("/consul/:service", res.healthyInstances)
	router.GET("/available", res.available)
	router.GET("/relay", res.relay)
	return nil
}
