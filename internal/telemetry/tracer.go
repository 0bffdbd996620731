package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NewTracerProvider returns an OTLP-exporting provider when tracing is
// enabled and a no-op provider otherwise. The caller shuts down SDK providers.
func NewTracerProvider(ctx context.Context, res *resource.Resource, tc *TracingConfig) (trace.TracerProvider, error) {
	if tc == nil || !tc.Enabled {
		slog.Debug("Tracing disabled")
		return noop.NewTracerProvider(), nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(tc.GetEndpoint())}
	if tc.Insecure {
		slog.Warn("Spans are exported over plain HTTP", "endpoint", tc.GetEndpoint())
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	slog.Info("Tracing enabled", "endpoint", tc.GetEndpoint(), "sampling", tc.GetSampling())
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sampler(tc.GetSampling())),
	), nil
}

// sampler keeps the parent's decision for propagated traces and samples
// new root spans at ratio. A cycle span is a root, so ratio applies per cycle.
func sampler(ratio float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case ratio >= 1:
		root = sdktrace.AlwaysSample()
	case ratio <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(ratio)
	}
	return sdktrace.ParentBased(root)
}
