package metrics

import (
	"context"
	"fmt"

	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig names the service reporting metrics.
type ProviderConfig struct {
	ServiceName    string
	ServiceVersion string
}

// InitProvider builds a Prometheus-backed MeterProvider and returns a Bridge
// wired to it, along with a shutdown func to flush and release resources on
// exit.
func InitProvider(ctx context.Context, cfg ProviderConfig) (*Bridge, func(context.Context) error, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("metrics: build resource: %w", err)
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, nil, fmt.Errorf("metrics: build prometheus exporter: %w", err)
	}

	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(promExp),
	)

	b, err := New(mp)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics: build instruments: %w", err)
	}

	return b, mp.Shutdown, nil
}
