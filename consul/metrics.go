package consul

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/KOMKZ/go-yogan-consul/consul"

// 注册结果
const (
	resultRegistered        = "registered"
	resultAlreadyRegistered = "already_registered"
	resultFailed            = "failed"
)

type instruments struct {
	registrations metric.Int64Counter
	maintenance   metric.Int64Counter
}

// newInstruments mp 为 nil 时使用全局 provider；telemetry 未启用时为 noop
func newInstruments(mp metric.MeterProvider) *instruments {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	registrations, err := meter.Int64Counter("consul.registrations",
		metric.WithDescription("Service registration attempts by result"))
	if err != nil {
		otel.Handle(err)
	}
	maintenance, err := meter.Int64Counter("consul.maintenance.toggles",
		metric.WithDescription("Maintenance mode toggles"))
	if err != nil {
		otel.Handle(err)
	}
	return &instruments{registrations: registrations, maintenance: maintenance}
}

func (i *instruments) registration(ctx context.Context, service, result string) {
	i.registrations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("result", result)))
}

func (i *instruments) maintenanceToggle(ctx context.Context, serviceID string, enable bool) {
	i.maintenance.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service_id", serviceID),
		attribute.Bool("enable", enable)))
}
