// Package telemetry provides OpenTelemetry metrics and tracing for the
// seedpost pipeline and its HTTP status surface.
package telemetry

import (
	"errors"
	"fmt"
)

const (
	// DefaultServiceName is the default service name for telemetry
	DefaultServiceName = "seedpost"

	// DefaultEndpoint is the default OTLP endpoint for telemetry
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling is the default trace sampling rate (5%)
	DefaultSampling = 0.05

	// ExporterPrometheus serves metrics through a pull handler
	ExporterPrometheus = "prometheus"

	// ExporterOTLP pushes metrics to an OTLP HTTP collector
	ExporterOTLP = "otlp"
)

// Config represents the root telemetry configuration
type Config struct {
	// ServiceName defaults to "seedpost"
	ServiceName string

	// ServiceVersion defaults to "unknown"
	ServiceVersion string

	Metrics *MetricsConfig
	Tracing *TracingConfig
}

// MetricsConfig defines metrics export
type MetricsConfig struct {
	Enabled bool

	// Exporter is ExporterPrometheus or ExporterOTLP
	Exporter string

	// Endpoint is the OTLP collector host:port, used by ExporterOTLP
	Endpoint string
	Insecure bool
}

// TracingConfig defines span export
type TracingConfig struct {
	Enabled  bool
	Endpoint string
	Insecure bool

	// Sampling is the ratio of traces kept, 0.0 to 1.0
	Sampling float64
}

// GetServiceName returns the service name, using default if not specified
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version, using "unknown" if not specified
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return "unknown"
	}
	return c.ServiceVersion
}

// GetSampling returns the sampling ratio, using DefaultSampling when unset
func (tc *TracingConfig) GetSampling() float64 {
	if tc == nil || tc.Sampling == 0 {
		return DefaultSampling
	}
	return tc.Sampling
}

// GetEndpoint returns the tracing endpoint, using DefaultEndpoint when unset
func (tc *TracingConfig) GetEndpoint() string {
	if tc == nil || tc.Endpoint == "" {
		return DefaultEndpoint
	}
	return tc.Endpoint
}

// Validate checks the configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Metrics != nil && c.Metrics.Enabled {
		switch c.Metrics.Exporter {
		case "", ExporterPrometheus, ExporterOTLP:
		default:
			errs = append(errs, fmt.Errorf("unsupported metrics exporter: %s", c.Metrics.Exporter))
		}
	}

	if c.Tracing != nil && (c.Tracing.Sampling < 0 || c.Tracing.Sampling > 1) {
		errs = append(errs, fmt.Errorf("sampling rate must be between 0.0 and 1.0, got %f", c.Tracing.Sampling))
	}

	return errors.Join(errs...)
}
