package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/seedpost/seedpost/internal/api"
	"github.com/seedpost/seedpost/internal/channel"
	"github.com/seedpost/seedpost/internal/channel/telegram"
	"github.com/seedpost/seedpost/internal/command"
	"github.com/seedpost/seedpost/internal/config"
	"github.com/seedpost/seedpost/internal/discovery"
	"github.com/seedpost/seedpost/internal/filtering"
	"github.com/seedpost/seedpost/internal/httpclient"
	"github.com/seedpost/seedpost/internal/ledger"
	"github.com/seedpost/seedpost/internal/orchestrator"
	"github.com/seedpost/seedpost/internal/publish"
	"github.com/seedpost/seedpost/internal/status"
	"github.com/seedpost/seedpost/internal/telemetry"
	"github.com/seedpost/seedpost/internal/transfer"
	torrentengine "github.com/seedpost/seedpost/internal/transfer/torrent"
	"github.com/seedpost/seedpost/internal/versions"
)

const (
	defaultRequestTimeout  = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second

	startupMessage = "🚀 Seedpost uploader started!"
)

// ErrLedgerCorrupted is returned when the ledger file cannot be decoded and
// the configured policy is to halt
var ErrLedgerCorrupted = errors.New("ledger file is corrupted")

// SeedpostAppOption configures the app builder
type SeedpostAppOption func(*appConfig) error

// appConfig collects the builder inputs. Injected components replace the
// production ones, mostly for tests.
type appConfig struct {
	config *config.Config

	channel    channel.Client
	engine     Engine
	discoverer discovery.Discoverer
	fetcher    httpclient.Client
	telemetry  *telemetry.Telemetry

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...SeedpostAppOption) (*appConfig, error) {
	cfg := &appConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.Server.Address
	}
	return cfg, nil
}

// NewSeedpostApp builds every component from the configuration. Startup
// failures (channel authentication, a locked or corrupted ledger) are
// returned as errors and nothing is left running.
func NewSeedpostApp(ctx context.Context, opts ...SeedpostAppOption) (*SeedpostApp, error) {
	b, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	cfg := b.config

	var cleanups []func()
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			for i := len(cleanups) - 1; i >= 0; i-- {
				cleanups[i]()
			}
		}
	}()

	ownTelemetry := b.telemetry == nil
	if ownTelemetry {
		b.telemetry, err = telemetry.New(ctx, telemetryConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		tel := b.telemetry
		cleanups = append(cleanups, func() { _ = tel.Shutdown(context.Background()) })
	}

	outcome, err := openLedger(cfg.Ledger)
	if err != nil {
		return nil, err
	}
	cleanups = append(cleanups, func() { _ = outcome.Ledger.Close() })

	if b.channel == nil {
		b.channel, err = buildChannel(cfg.Channel)
		if err != nil {
			return nil, err
		}
	}

	if b.engine == nil {
		b.engine, err = torrentengine.New(cfg.Download.Root,
			torrentengine.WithListenPort(cfg.Transfer.ListenPort))
		if err != nil {
			return nil, fmt.Errorf("failed to create transfer engine: %w", err)
		}
	}
	engine := b.engine
	cleanups = append(cleanups, func() { _ = engine.Close() })

	if b.fetcher == nil {
		b.fetcher = httpclient.NewRetryingClient(httpclient.NewDefaultClient(cfg.GetListingTimeout()))
	}
	if b.discoverer == nil {
		b.discoverer, err = discovery.NewFromConfig(cfg.Listing, b.fetcher)
		if err != nil {
			return nil, fmt.Errorf("failed to create discoverer: %w", err)
		}
	}
	b.discoverer = filtering.NewFilteredDiscoverer(b.discoverer, filtering.NewDefaultFilterService(), cfg.Listing.Filter)

	metrics, err := telemetry.NewPipelineMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	metrics.RecordLedgerSize(ctx, len(outcome.Ledger.Records()))

	state := status.NewRunState()
	orch := buildOrchestrator(cfg, b, outcome.Ledger, state, metrics)
	plane := command.NewPlane(b.channel, state, orch, cfg.Public(), cfg.Channel.Operator,
		command.WithRecorder(metrics))

	var server *http.Server
	if b.address != "" {
		server, err = buildHTTPServer(b, state, outcome.Ledger)
		if err != nil {
			return nil, fmt.Errorf("failed to build HTTP server: %w", err)
		}
	}

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	components := &AppComponents{
		Orchestrator: orch,
		Plane:        plane,
		State:        state,
		Ledger:       outcome.Ledger,
		Channel:      b.channel,
		Engine:       b.engine,
	}
	if ownTelemetry {
		components.Telemetry = b.telemetry
	}

	return &SeedpostApp{
		config:     cfg,
		components: components,
		httpServer: server,
		notices:    startupNotices(outcome),
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SeedpostAppOption {
	return func(cfg *appConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress overrides server.address
func WithAddress(addr string) SeedpostAppOption {
	return func(cfg *appConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, ok := strings.Cut(addr, ":")
		if !ok || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}
		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SeedpostAppOption {
	return func(cfg *appConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithChannelClient injects the channel client
func WithChannelClient(c channel.Client) SeedpostAppOption {
	return func(cfg *appConfig) error {
		cfg.channel = c
		return nil
	}
}

// WithEngine injects the transfer engine. The app closes it on Stop.
func WithEngine(e Engine) SeedpostAppOption {
	return func(cfg *appConfig) error {
		cfg.engine = e
		return nil
	}
}

// WithDiscoverer injects the listing discoverer
func WithDiscoverer(d discovery.Discoverer) SeedpostAppOption {
	return func(cfg *appConfig) error {
		cfg.discoverer = d
		return nil
	}
}

// WithFetcher injects the HTTP client used for listings and descriptors
func WithFetcher(f httpclient.Client) SeedpostAppOption {
	return func(cfg *appConfig) error {
		cfg.fetcher = f
		return nil
	}
}

// WithTelemetry injects telemetry providers. The caller keeps ownership and
// shuts them down.
func WithTelemetry(t *telemetry.Telemetry) SeedpostAppOption {
	return func(cfg *appConfig) error {
		cfg.telemetry = t
		return nil
	}
}

func telemetryConfig(cfg *config.Config) *telemetry.Config {
	return &telemetry.Config{
		ServiceName:    telemetry.DefaultServiceName,
		ServiceVersion: versions.GetVersionInfo().Version,
		Metrics: &telemetry.MetricsConfig{
			Enabled:  cfg.Metrics.Enabled,
			Exporter: cfg.Metrics.Exporter,
			Endpoint: cfg.Metrics.Endpoint,
			Insecure: cfg.Metrics.Insecure,
		},
		Tracing: &telemetry.TracingConfig{
			Enabled:  cfg.Tracing.Enabled,
			Endpoint: cfg.Tracing.Endpoint,
			Insecure: cfg.Tracing.Insecure,
			Sampling: cfg.Tracing.Sampling,
		},
	}
}

// openLedger loads the ledger and applies the corruption policy
func openLedger(lc config.LedgerConfig) (*ledger.LoadOutcome, error) {
	var opts []ledger.Option
	halt := lc.OnCorrupt == config.OnCorruptHalt
	if halt {
		opts = append(opts, ledger.WithKeepCorrupt())
	}

	outcome, err := ledger.Load(lc.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	if outcome.Corrupted && halt {
		_ = outcome.Ledger.Close()
		return nil, fmt.Errorf("%w: %s (%s)", ErrLedgerCorrupted, lc.Path, outcome.Reason)
	}
	return outcome, nil
}

func buildChannel(cc config.ChannelConfig) (channel.Client, error) {
	token, err := cc.GetBotToken()
	if err != nil {
		return nil, err
	}
	var opts []telegram.Option
	if cc.APIEndpoint != "" {
		opts = append(opts, telegram.WithAPIEndpoint(cc.APIEndpoint))
	}
	client, err := telegram.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate channel client: %w", err)
	}
	return client, nil
}

func buildOrchestrator(
	cfg *config.Config,
	b *appConfig,
	l *ledger.FileLedger,
	state *status.RunState,
	metrics *telemetry.PipelineMetrics,
) orchestrator.Orchestrator {
	tracker := transfer.NewTracker(b.engine,
		transfer.WithPollInterval(cfg.GetTransferPollInterval()),
		transfer.WithTimeout(cfg.GetTransferTimeout()))

	gate := &recordingGate{
		gate:    publish.NewGate(l, b.channel, cfg.GetMaxSizeBytes()),
		ledger:  l,
		metrics: metrics,
	}

	return orchestrator.New(
		b.discoverer,
		b.fetcher,
		tracker,
		gate,
		b.channel,
		state,
		orchestrator.SettingsFromConfig(cfg),
		orchestrator.WithMetrics(metrics),
		orchestrator.WithTracer(b.telemetry.Tracer(telemetry.PipelineTracerName)),
		orchestrator.WithPreflight(b.engine, l),
	)
}

// buildHTTPServer builds the status server with router and middleware
func buildHTTPServer(b *appConfig, state *status.RunState, l *ledger.FileLedger) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	middlewares := b.middlewares
	if middlewares == nil {
		middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	instrumentation, err := telemetry.NewHTTPInstrumentation(
		b.telemetry.MeterProvider(),
		b.telemetry.TracerProvider(),
		telemetry.WithIgnoredPaths("/health", "/readiness", "/metrics"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP instrumentation: %w", err)
	}
	middlewares = append([]func(http.Handler) http.Handler{instrumentation.Middleware}, middlewares...)

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(middlewares...),
		api.WithSettings(b.config.Public()),
	}
	if h := b.telemetry.MetricsHandler(); h != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(h))
	}

	server := &http.Server{
		Addr:         b.address,
		Handler:      api.NewServer(state, l, serverOpts...),
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}

// startupNotices are the operator messages sent when the app starts
func startupNotices(outcome *ledger.LoadOutcome) []string {
	notices := []string{startupMessage}
	if outcome.Corrupted {
		msg := "⚠️ Upload history was unreadable and has been reset: " + outcome.Reason
		if outcome.BackupPath != "" {
			msg += "\nThe old file was kept at " + outcome.BackupPath
		}
		notices = append(notices, msg)
	}
	return notices
}
