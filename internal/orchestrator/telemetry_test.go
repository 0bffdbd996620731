package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	"github.com/seedpost/seedpost/internal/discovery"
	"github.com/seedpost/seedpost/internal/telemetry"
	"github.com/seedpost/seedpost/internal/transfer"
)

func TestRunCycle_RecordsSpansAndMetrics(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	reader := sdkmetric.NewManualReader()
	metrics, err := telemetry.NewPipelineMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	f := newFixture(t, WithTracer(tp.Tracer(telemetry.PipelineTracerName)), WithMetrics(metrics))

	good := magnetItem(1, "1 MB")
	bad := magnetItem(2, "1 MB")
	path := f.artifact(t, "one.mkv", 10)

	f.discoverer.EXPECT().ListLatest(gomock.Any(), 5).Return([]discovery.CandidateItem{good, bad}, nil)
	f.tracker.EXPECT().Run(gomock.Any(), good, gomock.Any(), gomock.Any()).Return(completed(path, "01"), nil)
	f.tracker.EXPECT().Run(gomock.Any(), bad, gomock.Any(), gomock.Any()).
		Return(transfer.Result{Job: transfer.Job{State: transfer.StateFailed}}, errors.New("no peers"))
	f.channel.EXPECT().SendFile(gomock.Any(), target, path, gomock.Any()).Return(nil)
	f.channel.EXPECT().SendMessage(gomock.Any(), operator, gomock.Any()).Return(nil)

	f.orch.runCycle(context.Background())

	spans := exporter.GetSpans()
	byTitle := make(map[string]map[string]string)
	var cycles int
	for _, s := range spans {
		attrs := make(map[string]string)
		for _, kv := range s.Attributes {
			attrs[string(kv.Key)] = kv.Value.Emit()
		}
		switch s.Name {
		case "orchestrator.cycle":
			cycles++
			assert.Equal(t, "2", attrs["scan.item_count"])
		case "orchestrator.item":
			byTitle[attrs["item.title"]] = attrs
		}
	}
	assert.Equal(t, 1, cycles)
	require.Len(t, byTitle, 2)
	assert.Equal(t, "published", byTitle["Item 1"]["publish.outcome"])
	assert.Equal(t, "01", byTitle["Item 1"]["transfer.infohash"])
	assert.Equal(t, "transfer", byTitle["Item 2"]["pipeline.stage"])

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	counters := make(map[string]map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			counters[m.Name] = make(map[string]int64)
			for _, dp := range sum.DataPoints {
				label := ""
				for _, kv := range dp.Attributes.ToSlice() {
					label = kv.Value.Emit()
				}
				counters[m.Name][label] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), counters["seedpost_items_discovered_total"][""])
	assert.Equal(t, int64(1), counters["seedpost_publish_outcomes_total"]["published"])
	assert.Equal(t, int64(1), counters["seedpost_errors_total"]["transfer"])
}
