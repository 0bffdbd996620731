package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// PipelineMetricsMeterName is the name used for the pipeline metrics meter
	PipelineMetricsMeterName = "github.com/seedpost/seedpost/pipeline"

	// PipelineTracerName is the name used for pipeline spans
	PipelineTracerName = "github.com/seedpost/seedpost/pipeline"
)

// PipelineMetrics holds the OpenTelemetry instruments of the scan, transfer
// and publish pipeline. A nil *PipelineMetrics records nothing.
type PipelineMetrics struct {
	itemsDiscovered  metric.Int64Counter
	publishOutcomes  metric.Int64Counter
	errors           metric.Int64Counter
	transferDuration metric.Float64Histogram
	cycleDuration    metric.Float64Histogram
	commands         metric.Int64Counter
	ledgerRecords    metric.Int64Gauge
}

// NewPipelineMetrics creates a new PipelineMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewPipelineMetrics(provider metric.MeterProvider) (*PipelineMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(PipelineMetricsMeterName)

	itemsDiscovered, err := meter.Int64Counter(
		"seedpost_items_discovered_total",
		metric.WithDescription("Candidates returned by listing scans"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	publishOutcomes, err := meter.Int64Counter(
		"seedpost_publish_outcomes_total",
		metric.WithDescription("Publish attempts by outcome"),
		metric.WithUnit("{artifact}"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter(
		"seedpost_errors_total",
		metric.WithDescription("Failed candidates by pipeline stage"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	transferDuration, err := meter.Float64Histogram(
		"seedpost_transfer_duration_seconds",
		metric.WithDescription("Duration of swarm transfers in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(10, 30, 60, 300, 600, 1200, 1800, 3600, 7200),
	)
	if err != nil {
		return nil, err
	}

	cycleDuration, err := meter.Float64Histogram(
		"seedpost_cycle_duration_seconds",
		metric.WithDescription("Duration of orchestrator cycles in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 10, 60, 300, 900, 1800, 3600, 7200, 14400),
	)
	if err != nil {
		return nil, err
	}

	commands, err := meter.Int64Counter(
		"seedpost_commands_total",
		metric.WithDescription("Operator commands handled"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, err
	}

	ledgerRecords, err := meter.Int64Gauge(
		"seedpost_ledger_records",
		metric.WithDescription("Records in the idempotency ledger"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		itemsDiscovered:  itemsDiscovered,
		publishOutcomes:  publishOutcomes,
		errors:           errs,
		transferDuration: transferDuration,
		cycleDuration:    cycleDuration,
		commands:         commands,
		ledgerRecords:    ledgerRecords,
	}, nil
}

// RecordDiscovered adds n scanned candidates
func (m *PipelineMetrics) RecordDiscovered(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.itemsDiscovered.Add(ctx, int64(n))
}

// RecordPublishOutcome counts one publish attempt
func (m *PipelineMetrics) RecordPublishOutcome(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.publishOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordError counts one failed candidate at stage
func (m *PipelineMetrics) RecordError(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordTransferDuration records a finished transfer and its terminal state
func (m *PipelineMetrics) RecordTransferDuration(ctx context.Context, duration time.Duration, state string) {
	if m == nil {
		return
	}
	m.transferDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("state", state)))
}

// RecordCycleDuration records one orchestrator cycle
func (m *PipelineMetrics) RecordCycleDuration(ctx context.Context, duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Record(ctx, duration.Seconds())
}

// RecordCommand counts one handled operator command
func (m *PipelineMetrics) RecordCommand(ctx context.Context, name string) {
	if m == nil {
		return
	}
	m.commands.Add(ctx, 1, metric.WithAttributes(attribute.String("command", name)))
}

// RecordLedgerSize records the number of ledger records
func (m *PipelineMetrics) RecordLedgerSize(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.ledgerRecords.Record(ctx, int64(n))
}
