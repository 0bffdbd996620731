// Package config provides configuration loading and management for seedpost.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is the prefix of every environment variable seedpost reads
	EnvPrefix = "SEEDPOST"

	// ListingFormatHTML parses the listing as an HTML page of links
	ListingFormatHTML = "html"

	// ListingFormatRSS parses the listing as an RSS or Atom feed
	ListingFormatRSS = "rss"

	// OnCorruptContinue starts with an empty ledger when the file is corrupted
	OnCorruptContinue = "continue"

	// OnCorruptHalt refuses to start when the ledger file is corrupted
	OnCorruptHalt = "halt"

	// MetricsExporterPrometheus serves metrics on /metrics
	MetricsExporterPrometheus = "prometheus"

	// MetricsExporterOTLP pushes metrics to an OTLP HTTP collector
	MetricsExporterOTLP = "otlp"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path  string
	viper *viper.Viper
}

// WithConfigPath loads configuration from a YAML file before applying
// environment overrides
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// WithViper supplies the viper instance used for overrides. Values set on it
// directly take precedence the same way environment variables do.
func WithViper(v *viper.Viper) Option {
	return func(cfg *loaderConfig) error {
		if v == nil {
			return fmt.Errorf("viper instance is required")
		}
		cfg.viper = v
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Listing  ListingConfig  `yaml:"listing"`
	Poll     PollConfig     `yaml:"poll"`
	Download DownloadConfig `yaml:"download"`
	Transfer TransferConfig `yaml:"transfer"`
	Publish  PublishConfig  `yaml:"publish"`
	Channel  ChannelConfig  `yaml:"channel"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ListingConfig defines where candidates are discovered
type ListingConfig struct {
	// URL is the listing page or feed
	URL string `yaml:"url"`

	// Format is html or rss
	Format string `yaml:"format,omitempty"`

	// Limit caps the number of candidates taken per scan
	Limit int `yaml:"limit,omitempty"`

	// Timeout bounds each listing request (e.g., "20s")
	Timeout string `yaml:"timeout,omitempty"`

	// Filter narrows candidates by title
	Filter *FilterConfig `yaml:"filter,omitempty"`
}

// FilterConfig holds title glob patterns. Exclude wins over include.
type FilterConfig struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// IsEmpty reports whether the filter keeps every title
func (f *FilterConfig) IsEmpty() bool {
	return f == nil || len(f.Include) == 0 && len(f.Exclude) == 0
}

// PollConfig defines the scan cadence
type PollConfig struct {
	// Interval between scans, a duration ("1h") or bare seconds ("3600")
	Interval string `yaml:"interval"`
}

// DownloadConfig defines where transfers write their content
type DownloadConfig struct {
	Root string `yaml:"root"`
}

// TransferConfig defines the swarm transfer settings
type TransferConfig struct {
	// Timeout is the hard deadline of one transfer job
	Timeout string `yaml:"timeout,omitempty"`

	// PollInterval is how often the engine status is sampled
	PollInterval string `yaml:"pollInterval,omitempty"`

	// ListenPort is the peer listen port of the transfer engine
	ListenPort int `yaml:"listenPort,omitempty"`
}

// PublishConfig defines the publish gate policy
type PublishConfig struct {
	// MaxSize is the largest artifact sent, bytes or a humanized size ("50MB").
	// Empty means the upload limit of the Bot API in use.
	MaxSize string `yaml:"maxSize,omitempty"`
}

// ChannelConfig defines the remote channel and operator
type ChannelConfig struct {
	// Target is the numeric chat id artifacts are published to
	Target int64 `yaml:"target"`

	// Operator is the numeric user id allowed to issue commands
	Operator int64 `yaml:"operator"`

	// BotToken authenticates the channel client
	BotToken string `yaml:"botToken,omitempty"`

	// BotTokenFile is the path to a file containing the bot token
	// This is the recommended approach for production deployments
	BotTokenFile string `yaml:"botTokenFile,omitempty"`

	// APIEndpoint overrides the Bot API endpoint, e.g. a self-hosted server
	// that allows uploads beyond the public size limit
	APIEndpoint string `yaml:"apiEndpoint,omitempty"`
}

// LedgerConfig defines the idempotency ledger location and policy
type LedgerConfig struct {
	Path string `yaml:"path"`

	// OnCorrupt is continue or halt
	OnCorrupt string `yaml:"onCorrupt,omitempty"`
}

// ServerConfig defines the HTTP status surface
type ServerConfig struct {
	// Address to listen on, empty disables the server
	Address string `yaml:"address"`
}

// MetricsConfig defines metrics export
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporter is prometheus or otlp
	Exporter string `yaml:"exporter,omitempty"`

	// Endpoint is the OTLP collector host:port
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure allows plain HTTP to the collector
	Insecure bool `yaml:"insecure,omitempty"`
}

// TracingConfig defines span export to an OTLP collector
type TracingConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Endpoint string  `yaml:"endpoint,omitempty"`
	Insecure bool    `yaml:"insecure,omitempty"`
	Sampling float64 `yaml:"sampling,omitempty"`
}

// GetBotToken returns the bot token using the following priority:
// 1. Read from BotTokenFile if specified
// 2. The BotToken value (from YAML or SEEDPOST_CHANNEL_BOT_TOKEN)
//
// The token from file will have leading/trailing whitespace trimmed.
func (c *ChannelConfig) GetBotToken() (string, error) {
	if c.BotTokenFile != "" {
		cleanPath := filepath.Clean(c.BotTokenFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read bot token from file %s: %w", c.BotTokenFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if c.BotToken != "" {
		return c.BotToken, nil
	}

	return "", fmt.Errorf("no bot token configured: set channel.botTokenFile or %s_CHANNEL_BOT_TOKEN", EnvPrefix)
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// and environment overrides, then validates it
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	config := Default()

	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	v := loaderCfg.viper
	if v == nil {
		v = newEnvViper()
	}
	if err := applyOverrides(v, config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if c.Listing.URL == "" {
		errs = append(errs, fmt.Errorf("listing.url is required"))
	} else if u, err := url.Parse(c.Listing.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("listing.url must be an absolute URL: %s", c.Listing.URL))
	}
	switch c.Listing.Format {
	case ListingFormatHTML, ListingFormatRSS:
	default:
		errs = append(errs, fmt.Errorf("listing.format must be %s or %s, got %q",
			ListingFormatHTML, ListingFormatRSS, c.Listing.Format))
	}
	if c.Listing.Limit <= 0 {
		errs = append(errs, fmt.Errorf("listing.limit must be positive"))
	}
	if _, err := parseDuration(c.Listing.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("listing.timeout: %w", err))
	}
	if f := c.Listing.Filter; f != nil {
		errs = append(errs, validatePatterns("listing.filter.include", f.Include)...)
		errs = append(errs, validatePatterns("listing.filter.exclude", f.Exclude)...)
	}

	if _, err := parseDuration(c.Poll.Interval); err != nil {
		errs = append(errs, fmt.Errorf("poll.interval: %w", err))
	}
	if c.Download.Root == "" {
		errs = append(errs, fmt.Errorf("download.root is required"))
	}
	if _, err := parseDuration(c.Transfer.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("transfer.timeout: %w", err))
	}
	if _, err := parseDuration(c.Transfer.PollInterval); err != nil {
		errs = append(errs, fmt.Errorf("transfer.pollInterval: %w", err))
	}
	if c.Transfer.ListenPort < 0 || c.Transfer.ListenPort > 65535 {
		errs = append(errs, fmt.Errorf("transfer.listenPort out of range: %d", c.Transfer.ListenPort))
	}
	if c.Publish.MaxSize != "" {
		n, err := parseSize(c.Publish.MaxSize)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("publish.maxSize: %w", err))
		case c.Channel.APIEndpoint == "" && n > c.apiUploadLimit():
			errs = append(errs, fmt.Errorf(
				"publish.maxSize %s exceeds the %s upload limit of the public Bot API; set channel.apiEndpoint to a self-hosted server",
				c.Publish.MaxSize, publicAPIMaxSize))
		}
	}

	if c.Channel.Target == 0 {
		errs = append(errs, fmt.Errorf("channel.target is required"))
	}
	if c.Channel.Operator == 0 {
		errs = append(errs, fmt.Errorf("channel.operator is required"))
	}
	if c.Channel.BotToken == "" && c.Channel.BotTokenFile == "" {
		errs = append(errs, fmt.Errorf("channel.botToken or channel.botTokenFile is required"))
	}

	if c.Ledger.Path == "" {
		errs = append(errs, fmt.Errorf("ledger.path is required"))
	}
	switch c.Ledger.OnCorrupt {
	case OnCorruptContinue, OnCorruptHalt:
	default:
		errs = append(errs, fmt.Errorf("ledger.onCorrupt must be %s or %s, got %q",
			OnCorruptContinue, OnCorruptHalt, c.Ledger.OnCorrupt))
	}

	if c.Metrics.Enabled {
		switch c.Metrics.Exporter {
		case MetricsExporterPrometheus:
			if c.Server.Address == "" {
				errs = append(errs, fmt.Errorf("metrics.exporter %s requires server.address", MetricsExporterPrometheus))
			}
		case MetricsExporterOTLP:
			if c.Metrics.Endpoint == "" {
				errs = append(errs, fmt.Errorf("metrics.endpoint is required for the %s exporter", MetricsExporterOTLP))
			}
		default:
			errs = append(errs, fmt.Errorf("metrics.exporter must be %s or %s, got %q",
				MetricsExporterPrometheus, MetricsExporterOTLP, c.Metrics.Exporter))
		}
	}

	if c.Tracing.Enabled {
		if c.Tracing.Endpoint == "" {
			errs = append(errs, fmt.Errorf("tracing.endpoint is required when tracing is enabled"))
		}
		if c.Tracing.Sampling < 0 || c.Tracing.Sampling > 1 {
			errs = append(errs, fmt.Errorf("tracing.sampling must be between 0 and 1, got %v", c.Tracing.Sampling))
		}
	}

	return errors.Join(errs...)
}

func validatePatterns(key string, patterns []string) []error {
	var errs []error
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			errs = append(errs, fmt.Errorf("%s: empty pattern", key))
			continue
		}
		if _, err := filepath.Match(pattern, "test"); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid pattern %q: %w", key, pattern, err))
			continue
		}
		if _, err := glob.Compile(strings.ToLower(pattern)); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid pattern %q: %w", key, pattern, err))
		}
	}
	return errs
}
