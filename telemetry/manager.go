package telemetry

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/KOMKZ/go-yogan-consul/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Manager 管理 TracerProvider 与 MeterProvider，实现 application.Managed
type Manager struct {
	cfg    Config
	writer io.Writer
	log    *logger.CtxZapLogger

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// ManagerOption 选项
type ManagerOption func(*Manager)

// WithWriter stdout 导出的目标，默认 os.Stdout
func WithWriter(w io.Writer) ManagerOption {
	return func(m *Manager) { m.writer = w }
}

// NewManager 创建管理器，Start 时才创建 provider
func NewManager(cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{cfg: cfg, writer: os.Stdout, log: logger.GetLogger("telemetry")}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start 创建 provider 并设为全局
func (m *Manager) Start(ctx context.Context) error {
	if !m.cfg.Enabled {
		m.log.InfoCtx(ctx, "Telemetry disabled, skipping initialization")
		return nil
	}

	res, err := newResource(ctx, m.cfg)
	if err != nil {
		return err
	}
	tp, err := newTracerProvider(ctx, m.cfg, res, m.writer)
	if err != nil {
		return err
	}
	m.tracerProvider = tp
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if m.cfg.Metrics.Enabled {
		mp, err := newMeterProvider(ctx, m.cfg, res, m.writer)
		if err != nil {
			_ = tp.Shutdown(ctx)
			return err
		}
		m.meterProvider = mp
		otel.SetMeterProvider(mp)
	}

	m.log.InfoCtx(ctx, "Telemetry started",
		zap.String("service_name", m.cfg.ServiceName),
		zap.String("exporter", m.cfg.Exporter.Type),
		zap.Bool("metrics", m.cfg.Metrics.Enabled))
	return nil
}

// Stop 刷新并关闭 provider
func (m *Manager) Stop(ctx context.Context) error {
	var errs []error
	if m.meterProvider != nil {
		errs = append(errs, m.meterProvider.Shutdown(ctx))
	}
	if m.tracerProvider != nil {
		errs = append(errs, m.tracerProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Tracer 未启动时返回全局 provider 的 tracer
func (m *Manager) Tracer(name string) trace.Tracer {
	if m.tracerProvider == nil {
		return otel.Tracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

// Meter 未启用指标时返回全局 provider 的 meter
func (m *Manager) Meter(name string) metric.Meter {
	if m.meterProvider == nil {
		return otel.Meter(name)
	}
	return m.meterProvider.Meter(name)
}

// IsEnabled 是否启用
func (m *Manager) IsEnabled() bool {
	return m.cfg.Enabled
}
