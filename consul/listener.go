package consul

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/KOMKZ/go-yogan-consul/application"
	"github.com/KOMKZ/go-yogan-consul/logger"
	"go.uber.org/zap"
)

// ServiceListener 端口绑定完成后向 Consul 注册，失败时按固定间隔重试直到成功或调度器关闭
type ServiceListener struct {
	advertiser    *Advertiser
	retryInterval *time.Duration
	scheduler     Scheduler
	log           *logger.CtxZapLogger
}

// NewServiceListener 创建监听器
// retryInterval 或 scheduler 为 nil 时只注册一次
func NewServiceListener(advertiser *Advertiser, retryInterval *time.Duration, scheduler Scheduler) *ServiceListener {
	return &ServiceListener{
		advertiser:    advertiser,
		retryInterval: retryInterval,
		scheduler:     scheduler,
		log:           advertiser.log,
	}
}

// registration 一次注册尝试的参数
type registration struct {
	appScheme   string
	appPort     int
	adminScheme string
	adminPort   int
	hosts       []string
}

// ServerStarted 实现 application.ServerLifecycleListener
// application 连接器提供业务端口，admin 连接器提供管理端口，其他连接器同时作为两者；重复时后者覆盖前者
func (l *ServiceListener) ServerStarted(connectors []application.Connector) {
	r := registration{appPort: -1, adminPort: -1}
	var appCount, adminCount, otherCount int

	for _, c := range connectors {
		if strings.TrimSpace(c.Host) != "" && !slices.Contains(r.hosts, c.Host) {
			r.hosts = append(r.hosts, c.Host)
		}

		switch c.Name {
		case application.ConnectorApplication:
			r.appPort = c.Port
			r.appScheme = l.scheme(c)
			appCount++
		case application.ConnectorAdmin:
			r.adminPort = c.Port
			r.adminScheme = l.scheme(c)
			adminCount++
		default:
			r.appPort = c.Port
			r.appScheme = l.scheme(c)
			r.adminPort = r.appPort
			r.adminScheme = r.appScheme
			otherCount++
		}
	}

	l.warnConnectors(appCount, adminCount, otherCount)

	var missing []string
	if r.appPort == -1 {
		missing = append(missing, application.ConnectorApplication)
	}
	if r.adminPort == -1 {
		missing = append(missing, application.ConnectorAdmin)
	}
	if len(missing) > 0 {
		plural := ""
		if len(missing) > 1 {
			plural = "s"
		}
		l.log.Error("Did not find " + strings.Join(missing, " and ") + " port" + plural +
			", so Consul registration cannot continue and will be skipped." +
			" Check your configuration to make sure the server connectors are configured correctly.")
		return
	}

	l.log.Debug("Register with Consul",
		zap.String("application_scheme", r.appScheme),
		zap.Int("application_port", r.appPort),
		zap.Int("admin_port", r.adminPort),
		zap.Strings("hosts", r.hosts))

	l.register(r)
}

func (l *ServiceListener) warnConnectors(appCount, adminCount, otherCount int) {
	if appCount > 1 {
		l.log.Warn("There is more than one application connector." +
			" Only the last one's scheme and port will be registered with Consul" +
			" unless specified in the consul configuration!")
	}
	if adminCount > 1 {
		l.log.Warn("There is more than one admin connector." +
			" Only the last one's port will be registered with Consul" +
			" unless specified in the consul configuration!")
	}
	if otherCount > 0 {
		l.log.Warn("There is an 'other' connector (not application or admin)." +
			" Its port will be used as application and admin port," +
			" and its scheme as the application and admin scheme" +
			" unless specified in the consul configuration!")
	}
}

func (l *ServiceListener) scheme(c application.Connector) string {
	l.log.Info("Server connector protocols", zap.String("connector", c.Name), zap.Strings("protocols", c.Protocols))
	if slices.Contains(c.Protocols, "ssl") {
		return "https"
	}
	return "http"
}

// register 单次注册；失败时按 RetryDecision 重新调度自身
// 成功或放弃重试后关闭调度器
func (l *ServiceListener) register(r registration) {
	ctx := context.Background()
	_, err := l.advertiser.Register(ctx, r.appScheme, r.appPort, r.adminScheme, r.adminPort, r.hosts)
	if err == nil {
		l.shutdownScheduler()
		return
	}

	serviceID := l.advertiser.ServiceID()
	fields := []zap.Field{
		zap.String("service_id", serviceID),
		zap.String("scheme", r.appScheme),
		zap.Strings("hosts", r.hosts),
		zap.Int("port", r.appPort),
		zap.Int("admin_port", r.adminPort),
	}
	l.log.ErrorCtx(ctx, "Failed to register service in Consul", append(fields, zap.Error(err))...)

	if errors.Is(err, ErrBlankServiceName) {
		l.shutdownScheduler()
		return
	}

	shouldRetry, interval := l.RetryDecision()
	if !shouldRetry {
		if l.scheduler != nil {
			l.log.InfoCtx(ctx, "Will not try to register service again."+
				" Ensure there is a valid retry_interval if you want retry behavior.", fields...)
			l.shutdownScheduler()
		}
		return
	}

	l.log.InfoCtx(ctx, "Will try to register service again", append(fields, zap.Duration("retry_interval", interval))...)
	if err := l.scheduler.Schedule(interval, func() { l.register(r) }); err != nil {
		l.log.WarnCtx(ctx, "Could not schedule registration retry", append(fields, zap.Error(err))...)
	}
}

// RetryDecision 调度器存在且间隔为正时重试
func (l *ServiceListener) RetryDecision() (bool, time.Duration) {
	if l.scheduler == nil || l.retryInterval == nil {
		return false, 0
	}
	if *l.retryInterval <= 0 {
		l.log.Warn("Configured retry interval is non-positive; treating as no retry",
			zap.Duration("retry_interval", *l.retryInterval))
		return false, 0
	}
	return true, *l.retryInterval
}

func (l *ServiceListener) shutdownScheduler() {
	if l.scheduler == nil {
		return
	}
	if err := l.scheduler.Shutdown(); err != nil {
		l.log.Warn("Shutdown registration scheduler failed", zap.Error(err))
	}
}
