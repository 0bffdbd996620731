package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	defaultListingURL      = "https://www.shanaproject.com"
	defaultListingLimit    = 5
	defaultListingTimeout  = "20s"
	defaultPollInterval    = "1h"
	defaultDownloadRoot    = "./downloads"
	defaultTransferTimeout = "2h"
	defaultTransferPoll    = "5s"
	defaultListenPort      = 6881
	publicAPIMaxSize       = "50MB"
	localAPIMaxSize        = "2000MB"
	defaultLedgerPath      = "./data/uploaded_history.json"
	defaultServerAddress   = ":8080"
	defaultMetricsExporter = MetricsExporterPrometheus
	defaultMetricsEndpoint = "localhost:4318"
	defaultTracingSampling = 0.05
)

// Default returns a configuration with every optional field populated
func Default() *Config {
	return &Config{
		Listing: ListingConfig{
			URL:     defaultListingURL,
			Format:  ListingFormatHTML,
			Limit:   defaultListingLimit,
			Timeout: defaultListingTimeout,
		},
		Poll:     PollConfig{Interval: defaultPollInterval},
		Download: DownloadConfig{Root: defaultDownloadRoot},
		Transfer: TransferConfig{
			Timeout:      defaultTransferTimeout,
			PollInterval: defaultTransferPoll,
			ListenPort:   defaultListenPort,
		},
		Ledger: LedgerConfig{
			Path:      defaultLedgerPath,
			OnCorrupt: OnCorruptContinue,
		},
		Server: ServerConfig{Address: defaultServerAddress},
		Metrics: MetricsConfig{
			Exporter: defaultMetricsExporter,
			Endpoint: defaultMetricsEndpoint,
		},
		Tracing: TracingConfig{
			Endpoint: defaultMetricsEndpoint,
			Sampling: defaultTracingSampling,
		},
	}
}

// parseDuration accepts a Go duration or a bare number of seconds
func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("duration is required")
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("duration must be positive, got %q", value)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("must be a valid duration (e.g., '30m', '3600'): %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %q", value)
	}
	return d, nil
}

// parseSize accepts a byte count or a humanized size ("2GiB", "500 MB")
func parseSize(value string) (int64, error) {
	if value == "" {
		return 0, fmt.Errorf("size is required")
	}
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("must be a byte size (e.g., '2147483648', '2GiB'): %w", err)
	}
	if n == 0 || n > uint64(1<<62) {
		return 0, fmt.Errorf("size out of range: %q", value)
	}
	return int64(n), nil
}

// GetPollInterval returns the scan interval
func (c *Config) GetPollInterval() time.Duration {
	d, err := parseDuration(c.Poll.Interval)
	if err != nil {
		d, _ = parseDuration(defaultPollInterval)
	}
	return d
}

// GetListingTimeout returns the per-request listing timeout
func (c *Config) GetListingTimeout() time.Duration {
	d, err := parseDuration(c.Listing.Timeout)
	if err != nil {
		d, _ = parseDuration(defaultListingTimeout)
	}
	return d
}

// GetTransferTimeout returns the hard deadline of one transfer
func (c *Config) GetTransferTimeout() time.Duration {
	d, err := parseDuration(c.Transfer.Timeout)
	if err != nil {
		d, _ = parseDuration(defaultTransferTimeout)
	}
	return d
}

// GetTransferPollInterval returns the engine status sampling period
func (c *Config) GetTransferPollInterval() time.Duration {
	d, err := parseDuration(c.Transfer.PollInterval)
	if err != nil {
		d, _ = parseDuration(defaultTransferPoll)
	}
	return d
}

// GetMaxSizeBytes returns the publish size limit in bytes. Unset, it is the
// upload limit of the configured Bot API.
func (c *Config) GetMaxSizeBytes() int64 {
	n, err := parseSize(c.Publish.MaxSize)
	if err != nil {
		n = c.apiUploadLimit()
	}
	return n
}

// apiUploadLimit is the largest document the Bot API accepts: 50 MB for the
// public endpoint, 2000 MB for a self-hosted server
func (c *Config) apiUploadLimit() int64 {
	limit := publicAPIMaxSize
	if c.Channel.APIEndpoint != "" {
		limit = localAPIMaxSize
	}
	n, _ := parseSize(limit)
	return n
}

// Setting is one reportable configuration value
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Public returns the non-secret configuration in display order
func (c *Config) Public() []Setting {
	settings := []Setting{
		{Key: "Channel ID", Value: strconv.FormatInt(c.Channel.Target, 10)},
		{Key: "Check Interval", Value: c.GetPollInterval().String()},
		{Key: "Max File Size", Value: humanize.IBytes(uint64(c.GetMaxSizeBytes()))},
		{Key: "Listing URL", Value: c.Listing.URL},
		{Key: "Listing Format", Value: c.Listing.Format},
		{Key: "Batch Limit", Value: strconv.Itoa(c.Listing.Limit)},
		{Key: "Download Root", Value: c.Download.Root},
		{Key: "Transfer Timeout", Value: c.GetTransferTimeout().String()},
		{Key: "Ledger", Value: c.Ledger.Path},
	}
	if f := c.Listing.Filter; !f.IsEmpty() {
		if len(f.Include) > 0 {
			settings = append(settings, Setting{Key: "Include", Value: strings.Join(f.Include, ", ")})
		}
		if len(f.Exclude) > 0 {
			settings = append(settings, Setting{Key: "Exclude", Value: strings.Join(f.Exclude, ", ")})
		}
	}
	return settings
}
