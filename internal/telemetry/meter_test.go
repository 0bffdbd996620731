package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	t.Parallel()

	for _, mc := range []*MetricsConfig{nil, {Enabled: false}} {
		mp, err := NewMeterProvider(context.Background(), nil, mc)
		require.NoError(t, err)
		_, ok := mp.MeterProvider.(noop.MeterProvider)
		assert.True(t, ok, "expected no-op meter provider")
		assert.Nil(t, mp.Handler)
	}
}

func TestNewMeterProvider_UnsupportedExporter(t *testing.T) {
	t.Parallel()

	_, err := NewMeterProvider(context.Background(), nil, &MetricsConfig{Enabled: true, Exporter: "statsd"})
	require.Error(t, err)
}

func TestNewMeterProvider_OTLP(t *testing.T) {
	t.Parallel()

	mp, err := NewMeterProvider(context.Background(), nil, &MetricsConfig{
		Enabled:  true,
		Exporter: ExporterOTLP,
		Endpoint: "localhost:4318",
		Insecure: true,
	})
	require.NoError(t, err)
	assert.Nil(t, mp.Handler)

	sdk, ok := mp.MeterProvider.(*sdkmetric.MeterProvider)
	require.True(t, ok)
	_ = sdk.Shutdown(context.Background())
}

func TestNew_PrometheusHandlerServesPipelineMetrics(t *testing.T) {
	t.Parallel()

	tel, err := New(context.Background(), &Config{
		ServiceVersion: "test",
		Metrics:        &MetricsConfig{Enabled: true, Exporter: ExporterPrometheus},
	})
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(context.Background()) }()

	_, ok := tel.TracerProvider().(tracenoop.TracerProvider)
	assert.True(t, ok)
	require.NotNil(t, tel.MetricsHandler())

	m, err := NewPipelineMetrics(tel.MeterProvider())
	require.NoError(t, err)
	m.RecordDiscovered(context.Background(), 4)

	server := httptest.NewServer(tel.MetricsHandler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "seedpost_items_discovered_total")
}

func TestNew_Disabled(t *testing.T) {
	t.Parallel()

	tel, err := New(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, tel.MetricsHandler())
	assert.NotNil(t, tel.Tracer(PipelineTracerName))
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "empty", cfg: Config{}},
		{name: "prometheus", cfg: Config{Metrics: &MetricsConfig{Enabled: true, Exporter: ExporterPrometheus}}},
		{name: "bad exporter", cfg: Config{Metrics: &MetricsConfig{Enabled: true, Exporter: "graphite"}}, wantErr: true},
		{name: "bad sampling", cfg: Config{Tracing: &TracingConfig{Sampling: 2}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Equal(t, DefaultServiceName, (&Config{}).GetServiceName())
	assert.Equal(t, "unknown", (&Config{}).GetServiceVersion())
	assert.InDelta(t, DefaultSampling, (*TracingConfig)(nil).GetSampling(), 0.0001)
	assert.Equal(t, DefaultEndpoint, (&TracingConfig{}).GetEndpoint())
}
