package balancer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KOMKZ/go-yogan-consul/logger"
	"github.com/go-co-op/gocron/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/KOMKZ/go-yogan-consul/balancer"

// DefaultRefreshInterval 服务列表默认刷新间隔
const DefaultRefreshInterval = 10 * time.Second

// 实例选择规则
const (
	RuleRoundRobin           = "round_robin"
	RuleWeightedResponseTime = "weighted_response_time"
)

// responseTimeDecay 平均响应时间的指数衰减系数，越大越偏向最近一次
const responseTimeDecay = 0.3

// Option 选项
type Option func(*DynamicServerListBalancer)

// WithRefreshInterval 刷新间隔，<= 0 时使用默认值
func WithRefreshInterval(d time.Duration) Option {
	return func(b *DynamicServerListBalancer) {
		if d > 0 {
			b.refreshInterval = d
		}
	}
}

// WithLocalZone 本地区域，为空时不区分区域
func WithLocalZone(zone string) Option {
	return func(b *DynamicServerListBalancer) { b.localZone = zone }
}

// WithRule 选择规则，默认 RuleWeightedResponseTime
func WithRule(rule string) Option {
	return func(b *DynamicServerListBalancer) {
		if rule != "" {
			b.rule = rule
		}
	}
}

// WithLogger 自定义日志
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(b *DynamicServerListBalancer) {
		if log != nil {
			b.log = log
		}
	}
}

// WithMeterProvider 指标 provider，默认全局
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(b *DynamicServerListBalancer) {
		if mp != nil {
			b.meterProvider = mp
		}
	}
}

// DynamicServerListBalancer 定期刷新服务列表的轮询负载均衡器
type DynamicServerListBalancer struct {
	name            string
	list            ServerList
	refreshInterval time.Duration
	localZone       string
	rule            string
	random          func() float64
	log             *logger.CtxZapLogger
	meterProvider   metric.MeterProvider
	registration    metric.Registration

	mu      sync.RWMutex
	servers []*Server

	statsMu       sync.Mutex
	responseTimes map[string]float64 // HostPort -> 平均响应时间（纳秒）

	counter   atomic.Uint64
	scheduler gocron.Scheduler
	closed    atomic.Bool
}

// New 创建负载均衡器，Start 后开始加载和刷新
func New(name string, list ServerList, opts ...Option) *DynamicServerListBalancer {
	b := &DynamicServerListBalancer{
		name:            name,
		list:            list,
		refreshInterval: DefaultRefreshInterval,
		rule:            RuleWeightedResponseTime,
		random:          rand.Float64,
		responseTimes:   make(map[string]float64),
		log:             logger.GetLogger("balancer"),
		meterProvider:   otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name 负载均衡器名称（通常是服务名）
func (b *DynamicServerListBalancer) Name() string {
	return b.name
}

// Start 加载初始列表并启动定时刷新
// 初始加载失败只记录日志，列表为空直到下一次刷新成功
func (b *DynamicServerListBalancer) Start(ctx context.Context) error {
	servers, err := b.list.InitialServers(ctx)
	if err != nil {
		b.log.WarnCtx(ctx, "Initial server list load failed", zap.String("name", b.name), zap.Error(err))
	} else {
		b.setServers(servers)
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create refresh scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(b.refreshInterval),
		gocron.NewTask(func() {
			refreshCtx, cancel := context.WithTimeout(context.Background(), b.refreshInterval)
			defer cancel()
			_ = b.Refresh(refreshCtx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("server-list-refresh:"+b.name),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule server list refresh: %w", err)
	}
	s.Start()
	b.scheduler = s

	if err := b.registerMetrics(); err != nil {
		b.log.WarnCtx(ctx, "Balancer metrics registration failed", zap.String("name", b.name), zap.Error(err))
	}

	b.log.DebugCtx(ctx, "Balancer started",
		zap.String("name", b.name),
		zap.Int("servers", len(b.Servers(false))),
		zap.Duration("refresh_interval", b.refreshInterval))
	return nil
}

// registerMetrics 上报实例数量，按 available 区分
func (b *DynamicServerListBalancer) registerMetrics() error {
	meter := b.meterProvider.Meter(instrumentationName)
	gauge, err := meter.Int64ObservableGauge("balancer.servers",
		metric.WithDescription("Servers known to the balancer"))
	if err != nil {
		return err
	}
	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		all := b.Servers(false)
		available := 0
		for _, s := range all {
			if s.ReadyToServe {
				available++
			}
		}
		o.ObserveInt64(gauge, int64(available), metric.WithAttributes(
			attribute.String("name", b.name), attribute.Bool("available", true)))
		o.ObserveInt64(gauge, int64(len(all)-available), metric.WithAttributes(
			attribute.String("name", b.name), attribute.Bool("available", false)))
		return nil
	}, gauge)
	if err != nil {
		return err
	}
	b.registration = reg
	return nil
}

// Refresh 拉取最新列表，失败时保留旧列表
func (b *DynamicServerListBalancer) Refresh(ctx context.Context) error {
	servers, err := b.list.UpdatedServers(ctx)
	if err != nil {
		b.log.WarnCtx(ctx, "Server list refresh failed, keeping previous list",
			zap.String("name", b.name), zap.Error(err))
		return err
	}
	b.setServers(servers)
	return nil
}

func (b *DynamicServerListBalancer) setServers(servers []*Server) {
	copied := make([]*Server, 0, len(servers))
	for _, s := range servers {
		if s != nil {
			copied = append(copied, s)
		}
	}
	b.mu.Lock()
	b.servers = copied
	b.mu.Unlock()

	// 丢弃已下线实例的统计
	keep := make(map[string]struct{}, len(copied))
	for _, s := range copied {
		keep[s.HostPort()] = struct{}{}
	}
	b.statsMu.Lock()
	for key := range b.responseTimes {
		if _, ok := keep[key]; !ok {
			delete(b.responseTimes, key)
		}
	}
	b.statsMu.Unlock()
}

// RecordResponseTime 记录一次请求的响应时间，供加权选择使用
func (b *DynamicServerListBalancer) RecordResponseTime(server *Server, d time.Duration) {
	if server == nil || d < 0 {
		return
	}
	key := server.HostPort()
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	avg, ok := b.responseTimes[key]
	if !ok {
		b.responseTimes[key] = float64(d)
		return
	}
	b.responseTimes[key] = avg*(1-responseTimeDecay) + float64(d)*responseTimeDecay
}

// Choose 选择一个实例：优先本区域可用实例，本区域没有时在全部可用实例中选择
// 加权规则下按平均响应时间加权随机，统计不足时退回轮询；没有可用实例时返回 nil
func (b *DynamicServerListBalancer) Choose() *Server {
	candidates := b.candidates()
	if len(candidates) == 0 {
		return nil
	}
	if b.rule == RuleWeightedResponseTime {
		if s := b.chooseWeighted(candidates); s != nil {
			return s
		}
	}
	idx := b.counter.Add(1) - 1
	return candidates[idx%uint64(len(candidates))]
}

// chooseWeighted 实例权重为所有实例平均响应时间之和减去自身平均响应时间
// 没有统计的实例平均响应时间视为 0，权重最大；总权重为 0 时返回 nil
func (b *DynamicServerListBalancer) chooseWeighted(candidates []*Server) *Server {
	avgs := make([]float64, len(candidates))
	var total float64
	b.statsMu.Lock()
	for i, s := range candidates {
		avgs[i] = b.responseTimes[s.HostPort()]
		total += avgs[i]
	}
	b.statsMu.Unlock()
	if total <= 0 {
		return nil
	}

	cumulative := make([]float64, len(candidates))
	var sum float64
	for i, avg := range avgs {
		sum += total - avg
		cumulative[i] = sum
	}
	if sum <= 0 {
		return nil
	}

	r := b.random() * sum
	for i, w := range cumulative {
		if r < w {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

func (b *DynamicServerListBalancer) candidates() []*Server {
	available := b.Servers(true)
	if b.localZone == "" {
		return available
	}
	var local []*Server
	for _, s := range available {
		if s.Zone == b.localZone {
			local = append(local, s)
		}
	}
	if len(local) > 0 {
		return local
	}
	return available
}

// Servers 当前列表的副本，onlyAvailable 时只返回 ReadyToServe 的实例
func (b *DynamicServerListBalancer) Servers(onlyAvailable bool) []*Server {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Server, 0, len(b.servers))
	for _, s := range b.servers {
		if onlyAvailable && !s.ReadyToServe {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Shutdown 停止刷新，可重复调用
func (b *DynamicServerListBalancer) Shutdown() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if b.registration != nil {
		errs = append(errs, b.registration.Unregister())
	}
	if b.scheduler != nil {
		errs = append(errs, b.scheduler.Shutdown())
	}
	return errors.Join(errs...)
}
