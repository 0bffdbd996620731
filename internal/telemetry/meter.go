package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	// DefaultMetricsInterval is the push interval of the OTLP exporter
	DefaultMetricsInterval = 60 * time.Second
)

// MeterProvider pairs a meter provider with the pull handler of the
// Prometheus exporter. Handler is nil for the OTLP exporter and when metrics
// are disabled.
type MeterProvider struct {
	metric.MeterProvider
	Handler http.Handler
}

// NewMeterProvider creates a MeterProvider from mc. A nil or disabled config
// yields a no-op provider. The caller shuts down SDK providers.
func NewMeterProvider(ctx context.Context, res *resource.Resource, mc *MetricsConfig) (*MeterProvider, error) {
	if mc == nil || !mc.Enabled {
		slog.Info("Metrics disabled, using no-op meter provider")
		return &MeterProvider{MeterProvider: noop.NewMeterProvider()}, nil
	}

	var (
		reader  sdkmetric.Reader
		handler http.Handler
	)
	switch mc.Exporter {
	case "", ExporterPrometheus:
		registry := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		reader = exporter
		handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	case ExporterOTLP:
		exporter, err := createOTLPMetricsExporter(ctx, mc.Endpoint, mc.Insecure)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(DefaultMetricsInterval))
	default:
		return nil, fmt.Errorf("unsupported metrics exporter: %s", mc.Exporter)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	slog.Info("Metrics initialized", "exporter", mc.Exporter, "endpoint", mc.Endpoint)
	return &MeterProvider{MeterProvider: mp, Handler: handler}, nil
}

// newResource describes this service to exporters
func newResource(ctx context.Context, name, version string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(name),
			semconv.ServiceVersion(version),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// createOTLPMetricsExporter creates an OTLP HTTP metric exporter
func createOTLPMetricsExporter(ctx context.Context, endpoint string, insecure bool) (sdkmetric.Exporter, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(endpoint),
	}

	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	return exporter, nil
}
