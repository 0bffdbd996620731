package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/seedpost/seedpost/internal/config"
	"github.com/seedpost/seedpost/internal/discovery"
	"github.com/seedpost/seedpost/internal/httpclient"
	"github.com/seedpost/seedpost/internal/publish"
	"github.com/seedpost/seedpost/internal/status"
	"github.com/seedpost/seedpost/internal/telemetry"
	"github.com/seedpost/seedpost/internal/transfer"
)

// Orchestrator runs pipeline cycles until stopped
type Orchestrator interface {
	// Start runs an initial cycle and then one per interval or trigger.
	// Blocks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop cancels the loop and waits for it to return
	Stop() error

	// Trigger requests an immediate cycle. It returns false when a request
	// is already pending.
	Trigger() bool
}

// Publisher hands a completed artifact to the channel at most once
type Publisher interface {
	Publish(ctx context.Context, a publish.Artifact, target int64, caption string) publish.Outcome
}

// Notifier sends operator notifications
type Notifier interface {
	SendMessage(ctx context.Context, target int64, text string) error
}

// Identifier resolves the infohash of a descriptor before transfer
type Identifier interface {
	Identify(d transfer.Descriptor) (string, error)
}

// Seen reports whether a ledger key was already published
type Seen interface {
	Has(key string) bool
}

// Settings are the orchestrator's slice of the configuration
type Settings struct {
	Limit        int
	Interval     time.Duration
	DownloadRoot string
	Target       int64
	Operator     int64
}

// SettingsFromConfig extracts Settings from cfg
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Limit:        cfg.Listing.Limit,
		Interval:     cfg.GetPollInterval(),
		DownloadRoot: cfg.Download.Root,
		Target:       cfg.Channel.Target,
		Operator:     cfg.Channel.Operator,
	}
}

type defaultOrchestrator struct {
	discoverer discovery.Discoverer
	fetcher    httpclient.Client
	tracker    Transferrer
	gate       Publisher
	notifier   Notifier
	state      *status.RunState
	settings   Settings

	identifier Identifier
	seen       Seen
	metrics    *telemetry.PipelineMetrics
	tracer     trace.Tracer
	now        func() time.Time

	trigger chan struct{}

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// Option configures the orchestrator
type Option func(*defaultOrchestrator)

// WithMetrics sets the pipeline metrics
func WithMetrics(m *telemetry.PipelineMetrics) Option {
	return func(o *defaultOrchestrator) {
		o.metrics = m
	}
}

// WithTracer sets the tracer for cycle and item spans
func WithTracer(t trace.Tracer) Option {
	return func(o *defaultOrchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithPreflight skips the transfer of candidates whose infohash is already
// in seen
func WithPreflight(id Identifier, seen Seen) Option {
	return func(o *defaultOrchestrator) {
		o.identifier = id
		o.seen = seen
	}
}

// WithClock overrides the clock used for scan timestamps
func WithClock(now func() time.Time) Option {
	return func(o *defaultOrchestrator) {
		o.now = now
	}
}

// New creates an orchestrator with injected dependencies
func New(
	discoverer discovery.Discoverer,
	fetcher httpclient.Client,
	tracker Transferrer,
	gate Publisher,
	notifier Notifier,
	state *status.RunState,
	settings Settings,
	opts ...Option,
) Orchestrator {
	o := &defaultOrchestrator{
		discoverer: discoverer,
		fetcher:    fetcher,
		tracker:    tracker,
		gate:       gate,
		notifier:   notifier,
		state:      state,
		settings:   settings,
		tracer:     noop.NewTracerProvider().Tracer(telemetry.PipelineTracerName),
		now:        time.Now,
		trigger:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Start runs the cycle loop
func (o *defaultOrchestrator) Start(ctx context.Context) error {
	slog.Info("Starting orchestrator",
		"interval", o.settings.Interval.String(),
		"limit", o.settings.Limit,
		"download_root", o.settings.DownloadRoot)

	loopCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancelFunc = cancel
	o.mu.Unlock()
	defer func() {
		cancel()
		close(o.done)
		slog.Info("Orchestrator shutting down")
	}()

	o.runCycle(loopCtx)

	timer := time.NewTimer(o.settings.Interval)
	defer timer.Stop()

	for {
		select {
		case <-loopCtx.Done():
			slog.Info("Orchestrator stopping")
			return nil
		case <-timer.C:
		case <-o.trigger:
			slog.Info("Immediate check requested")
		}

		o.runCycle(loopCtx)
		timer.Reset(o.settings.Interval)
	}
}

// Stop gracefully stops the orchestrator
func (o *defaultOrchestrator) Stop() error {
	o.mu.Lock()
	cancel := o.cancelFunc
	o.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping orchestrator")
		cancel()
		<-o.done
	}
	return nil
}

// Trigger queues one immediate cycle
func (o *defaultOrchestrator) Trigger() bool {
	select {
	case o.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}
