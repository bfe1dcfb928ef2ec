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

// Config configures the OTLP meter provider and metric labels.
type Config struct {
	Enabled     bool
	Endpoint    string
	Protocol    string
	ServiceName string
	Environment string
}

// Metrics holds OTLP instruments for billed amounts.
type Metrics struct {
	certifiedAmount metric.Float64Counter
	retainageHeld   metric.Float64Counter
	waiverAmount    metric.Float64Counter
}

// NewProvider registers a periodic OTLP meter provider, or a no-op one when disabled.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.Protocol, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}
	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.Endpoint),
			zap.String("protocol", cfg.Protocol),
		)
	}
	return provider, nil
}

// New builds the billing amount instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "progresspay"
	}
	meter := provider.Meter(name)

	certified, err := meter.Float64Counter("progresspay_certified_amount_total",
		metric.WithDescription("Amount certified on pay applications."), metric.WithUnit("{USD}"))
	if err != nil {
		return nil, err
	}
	retainage, err := meter.Float64Counter("progresspay_retainage_held_total",
		metric.WithDescription("Retainage held on certified pay applications."), metric.WithUnit("{USD}"))
	if err != nil {
		return nil, err
	}
	waivers, err := meter.Float64Counter("progresspay_lien_waiver_amount_total",
		metric.WithDescription("Amount covered by recorded lien waivers."), metric.WithUnit("{USD}"))
	if err != nil {
		return nil, err
	}
	return &Metrics{certifiedAmount: certified, retainageHeld: retainage, waiverAmount: waivers}, nil
}

// RecordCertification adds the certified and retained amounts of one pay application.
func (m *Metrics) RecordCertification(ctx context.Context, orgID string, certified, retainage float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("org_id", strings.TrimSpace(orgID)))...)
	m.certifiedAmount.Add(ctx, certified, attrs)
	m.retainageHeld.Add(ctx, retainage, attrs)
}

// RecordLienWaiver adds a recorded waiver amount.
func (m *Metrics) RecordLienWaiver(ctx context.Context, orgID, waiverType string, amount float64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("waiver_type", strings.TrimSpace(waiverType)),
	)
	m.waiverAmount.Add(ctx, amount, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
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

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":      {},
	"waiver_type": {},
	"status":      {},
	"route":       {},
	"method":      {},
	"status_code": {},
}

// FilterAttributes strips labels outside the allow list to keep cardinality bounded.
// Project and pay application ids are never allowed.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}
