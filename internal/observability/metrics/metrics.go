package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	purchasesExecuted  metric.Int64Counter
	unitsSold          metric.Int64Counter
	capacityConflicts  metric.Int64Counter
	trancheAdvances    metric.Int64Counter
	trancheTransitions metric.Int64Counter
	overdueMarked      metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "fundops"
	}
	meter := provider.Meter(name)

	purchasesExecuted, err := meter.Int64Counter("fundops_purchases_executed_total")
	if err != nil {
		return nil, err
	}
	unitsSold, err := meter.Int64Counter("fundops_units_sold_total")
	if err != nil {
		return nil, err
	}
	capacityConflicts, err := meter.Int64Counter("fundops_capacity_conflicts_total")
	if err != nil {
		return nil, err
	}
	trancheAdvances, err := meter.Int64Counter("fundops_tranche_advances_total")
	if err != nil {
		return nil, err
	}
	trancheTransitions, err := meter.Int64Counter("fundops_tranche_transitions_total")
	if err != nil {
		return nil, err
	}
	overdueMarked, err := meter.Int64Counter("fundops_overdue_marked_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		purchasesExecuted:  purchasesExecuted,
		unitsSold:          unitsSold,
		capacityConflicts:  capacityConflicts,
		trancheAdvances:    trancheAdvances,
		trancheTransitions: trancheTransitions,
		overdueMarked:      overdueMarked,
	}, nil
}

// RecordPurchaseExecuted increments executed purchase and units-sold counts.
func (m *Metrics) RecordPurchaseExecuted(ctx context.Context, fundID string, units int64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("fund_id", strings.TrimSpace(fundID))}
	m.purchasesExecuted.Add(ctx, 1, metric.WithAttributes(attrs...))
	if units > 0 {
		m.unitsSold.Add(ctx, units, metric.WithAttributes(attrs...))
	}
}

// RecordCapacityConflict increments purchase capacity conflict counts.
func (m *Metrics) RecordCapacityConflict(ctx context.Context, fundID string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("fund_id", strings.TrimSpace(fundID))}
	m.capacityConflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTrancheAdvance increments pricing tranche auto-advance counts.
func (m *Metrics) RecordTrancheAdvance(ctx context.Context, fundID string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("fund_id", strings.TrimSpace(fundID))}
	m.trancheAdvances.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTrancheTransition increments lifecycle transition counts per target status.
func (m *Metrics) RecordTrancheTransition(ctx context.Context, toStatus string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("to_status", strings.TrimSpace(toStatus))}
	m.trancheTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOverdueMarked adds the number of tranches flipped to OVERDUE by a sweep.
func (m *Metrics) RecordOverdueMarked(ctx context.Context, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.overdueMarked.Add(ctx, count)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}
