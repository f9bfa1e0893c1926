package consul

import (
	"context"
	"fmt"
	"maps"
	"net"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/KOMKZ/go-yogan-consul/logger"
	"github.com/hashicorp/consul/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const (
	localhost              = "127.0.0.1"
	defaultHealthCheckPath = "healthcheck"
)

// Advertiser 负责单个服务实例在 Consul 上的注册与注销
// 配置在构造时固定，每次注册按"配置值优先，否则用实际监听值"计算生效值
type Advertiser struct {
	cfg              Config
	agent            Agent
	serviceID        string
	adminContextPath string
	log              *logger.CtxZapLogger
	meterProvider    metric.MeterProvider
	metrics          *instruments
}

// AdvertiserOption 选项
type AdvertiserOption func(*Advertiser)

// WithAdminContextPath 管理端口的路由前缀，健康检查 URL 会拼在它后面
func WithAdminContextPath(p string) AdvertiserOption {
	return func(a *Advertiser) { a.adminContextPath = p }
}

// WithLogger 自定义日志
func WithLogger(log *logger.CtxZapLogger) AdvertiserOption {
	return func(a *Advertiser) {
		if log != nil {
			a.log = log
		}
	}
}

// WithMeterProvider 指标 provider，默认全局
func WithMeterProvider(mp metric.MeterProvider) AdvertiserOption {
	return func(a *Advertiser) { a.meterProvider = mp }
}

// NewAdvertiser 创建 Advertiser
func NewAdvertiser(cfg Config, agent Agent, serviceID string, opts ...AdvertiserOption) *Advertiser {
	a := &Advertiser{
		cfg:              cfg,
		agent:            agent,
		serviceID:        serviceID,
		adminContextPath: "/",
		log:              logger.GetLogger("consul"),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.metrics = newInstruments(a.meterProvider)
	a.logOverrides()
	return a
}

func (a *Advertiser) logOverrides() {
	c := a.cfg
	if c.ServicePort != nil {
		a.log.Info("Using servicePort from configuration file", zap.Int("port", *c.ServicePort))
	}
	if c.AdminPort != nil {
		a.log.Info("Using adminPort from configuration file", zap.Int("port", *c.AdminPort))
	}
	if c.ServiceAddress != "" {
		a.log.Info("Using serviceAddress from configuration file", zap.String("address", c.ServiceAddress))
	}
	if c.ServiceSubnet != "" {
		a.log.Info("Using serviceSubnet from configuration file", zap.String("subnet", c.ServiceSubnet))
	}
	if c.ServiceAddressSupplier != nil {
		a.log.Info("Using serviceAddressSupplier from configuration")
	}
	if len(c.Tags) > 0 {
		a.log.Info("Using tags from the configuration file", zap.Strings("tags", c.Tags))
	}
	if c.ACLToken != "" {
		a.log.Info("Using ACL token from the configuration file (value intentionally not shown)")
	}
	if len(c.ServiceMeta) > 0 {
		a.log.Info("Using serviceMeta from the configuration file", zap.Any("meta", c.ServiceMeta))
	}
	if c.HealthCheckPath != "" {
		a.log.Info("Using health check path from the configuration file", zap.String("path", c.HealthCheckPath))
	}
	if c.HealthCheckSkipTLSVerify != nil {
		if *c.HealthCheckSkipTLSVerify {
			a.log.Warn("Certificate validation is disabled for the health check (tls_skip_verify=true)")
		} else {
			a.log.Info("Certificate validation is enabled for the health check (tls_skip_verify=false)")
		}
	}
}

// ServiceID 服务 ID
func (a *Advertiser) ServiceID() string {
	return a.serviceID
}

// Register 注册服务
// 已注册时返回 false 且不写入；服务名为空返回 ErrBlankServiceName；agent 错误原样返回
func (a *Advertiser) Register(ctx context.Context, appScheme string, appPort int, adminScheme string, adminPort int, hosts []string) (ok bool, err error) {
	name := a.cfg.ServiceName
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "consul.register")
	span.SetAttributes(attribute.String("consul.service", name), attribute.String("consul.service_id", a.serviceID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if strings.TrimSpace(name) == "" {
		a.metrics.registration(ctx, name, resultFailed)
		return false, ErrBlankServiceName
	}

	registered, err := a.agent.IsRegistered(ctx, a.serviceID)
	if err != nil {
		a.metrics.registration(ctx, name, resultFailed)
		return false, err
	}
	if registered {
		a.log.InfoCtx(ctx, "Service already registered",
			zap.String("service", name), zap.String("service_id", a.serviceID))
		a.metrics.registration(ctx, name, resultAlreadyRegistered)
		return false, nil
	}

	port := a.effectivePort(appPort)
	address, hasAddress := a.ResolveAddress(hosts)
	healthURL := a.healthCheckURL(adminScheme, address, a.effectiveAdminPort(adminPort))

	logAddress := address
	if !hasAddress {
		logAddress = "[agent-default]"
	}
	a.log.InfoCtx(ctx, "Registering service with Consul",
		zap.String("service", name),
		zap.String("service_id", a.serviceID),
		zap.String("address", logAddress),
		zap.Int("port", port),
		zap.Int("admin_port", a.effectiveAdminPort(adminPort)),
		zap.String("health_check_path", a.effectiveHealthCheckPath()),
		zap.String("health_check_url", healthURL),
		zap.Duration("check_interval", a.cfg.CheckInterval))

	check := &api.AgentServiceCheck{
		HTTP:                           healthURL,
		Interval:                       fmt.Sprintf("%ds", int64(a.cfg.CheckInterval.Seconds())),
		DeregisterCriticalServiceAfter: fmt.Sprintf("%dm", int64(a.cfg.DeregisterInterval.Minutes())),
	}
	if a.cfg.HealthCheckSkipTLSVerify != nil {
		check.TLSSkipVerify = *a.cfg.HealthCheckSkipTLSVerify
	}

	meta := make(map[string]string, len(a.cfg.ServiceMeta)+3)
	maps.Copy(meta, a.cfg.ServiceMeta)
	meta["scheme"] = appScheme
	meta["applicationScheme"] = appScheme
	meta["adminScheme"] = adminScheme

	reg := &api.AgentServiceRegistration{
		ID:    a.serviceID,
		Name:  name,
		Port:  port,
		Tags:  a.cfg.Tags,
		Meta:  meta,
		Check: check,
	}
	if hasAddress {
		reg.Address = address
	}

	if err := a.agent.Register(ctx, reg); err != nil {
		a.metrics.registration(ctx, name, resultFailed)
		return false, err
	}
	a.metrics.registration(ctx, name, resultRegistered)
	return true, nil
}

// Deregister 注销服务，失败只记录日志
func (a *Advertiser) Deregister(ctx context.Context) {
	registered, err := a.agent.IsRegistered(ctx, a.serviceID)
	if err != nil {
		a.log.ErrorCtx(ctx, "Failed to determine if service ID is registered",
			zap.String("service_id", a.serviceID), zap.Error(err))
		return
	}
	if !registered {
		a.log.InfoCtx(ctx, "No service registered with ID", zap.String("service_id", a.serviceID))
		return
	}

	a.log.InfoCtx(ctx, "Deregistering service ID", zap.String("service_id", a.serviceID))
	if err := a.agent.Deregister(ctx, a.serviceID); err != nil {
		a.log.ErrorCtx(ctx, "Failed to deregister service from Consul",
			zap.String("service_id", a.serviceID), zap.Error(err))
	}
}

// ResolveAddress 按优先级选择注册地址：
// 显式配置 > hosts 中第一个命中子网的 IP > ServiceAddressSupplier > 无（由 agent 决定）
func (a *Advertiser) ResolveAddress(hosts []string) (string, bool) {
	if a.cfg.ServiceAddress != "" {
		return a.cfg.ServiceAddress, true
	}
	if len(hosts) > 0 && a.cfg.ServiceSubnet != "" {
		if ip, ok := FindFirstEligibleIPBySubnet(hosts, a.cfg.ServiceSubnet); ok {
			return ip, true
		}
	}
	if a.cfg.ServiceAddressSupplier != nil {
		return a.supplyAddress()
	}
	return "", false
}

func (a *Advertiser) supplyAddress() (address string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Debug("Service address supplier panicked", zap.Any("panic", r))
			address, ok = "", false
		}
	}()
	address, err := a.cfg.ServiceAddressSupplier()
	if err != nil {
		a.log.Debug("Service address supplier returned an error", zap.Error(err))
		return "", false
	}
	return address, address != ""
}

// HealthCheckURL 健康检查地址，address 为空时使用 127.0.0.1
// 端口按配置的 AdminPort，未配置时为 0；注册时使用实际管理端口
func (a *Advertiser) HealthCheckURL(scheme, address string) string {
	return a.healthCheckURL(scheme, address, a.effectiveAdminPort(0))
}

func (a *Advertiser) healthCheckURL(scheme, address string, adminPort int) string {
	host := address
	if strings.TrimSpace(host) == "" {
		host = localhost
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(adminPort)),
		Path:   path.Join("/", a.adminContextPath, a.effectiveHealthCheckPath()),
	}
	return u.String()
}

func (a *Advertiser) effectivePort(bound int) int {
	if a.cfg.ServicePort != nil {
		return *a.cfg.ServicePort
	}
	return bound
}

func (a *Advertiser) effectiveAdminPort(bound int) int {
	if a.cfg.AdminPort != nil {
		return *a.cfg.AdminPort
	}
	return bound
}

func (a *Advertiser) effectiveHealthCheckPath() string {
	if a.cfg.HealthCheckPath != "" {
		return a.cfg.HealthCheckPath
	}
	return defaultHealthCheckPath
}
