package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// override maps one viper key onto a Config field
type override struct {
	key string
	set func(c *Config, value string) error
}

var overrides = []override{
	{"listing.url", func(c *Config, v string) error { c.Listing.URL = v; return nil }},
	{"listing.format", func(c *Config, v string) error { c.Listing.Format = strings.ToLower(v); return nil }},
	{"listing.limit", func(c *Config, v string) error { return setInt(&c.Listing.Limit, v) }},
	{"listing.timeout", func(c *Config, v string) error { c.Listing.Timeout = v; return nil }},
	{"listing.filter.include", func(c *Config, v string) error { c.filter().Include = splitList(v); return nil }},
	{"listing.filter.exclude", func(c *Config, v string) error { c.filter().Exclude = splitList(v); return nil }},
	{"poll.interval", func(c *Config, v string) error { c.Poll.Interval = v; return nil }},
	{"download.root", func(c *Config, v string) error { c.Download.Root = v; return nil }},
	{"transfer.timeout", func(c *Config, v string) error { c.Transfer.Timeout = v; return nil }},
	{"transfer.poll_interval", func(c *Config, v string) error { c.Transfer.PollInterval = v; return nil }},
	{"transfer.listen_port", func(c *Config, v string) error { return setInt(&c.Transfer.ListenPort, v) }},
	{"publish.max_size", func(c *Config, v string) error { c.Publish.MaxSize = v; return nil }},
	{"channel.target", func(c *Config, v string) error { return setInt64(&c.Channel.Target, v) }},
	{"channel.operator", func(c *Config, v string) error { return setInt64(&c.Channel.Operator, v) }},
	{"channel.bot_token", func(c *Config, v string) error { c.Channel.BotToken = v; return nil }},
	{"channel.bot_token_file", func(c *Config, v string) error { c.Channel.BotTokenFile = v; return nil }},
	{"channel.api_endpoint", func(c *Config, v string) error { c.Channel.APIEndpoint = v; return nil }},
	{"ledger.path", func(c *Config, v string) error { c.Ledger.Path = v; return nil }},
	{"ledger.on_corrupt", func(c *Config, v string) error { c.Ledger.OnCorrupt = strings.ToLower(v); return nil }},
	{"server.address", func(c *Config, v string) error { c.Server.Address = v; return nil }},
	{"metrics.enabled", func(c *Config, v string) error { return setBool(&c.Metrics.Enabled, v) }},
	{"metrics.exporter", func(c *Config, v string) error { c.Metrics.Exporter = strings.ToLower(v); return nil }},
	{"metrics.endpoint", func(c *Config, v string) error { c.Metrics.Endpoint = v; return nil }},
	{"metrics.insecure", func(c *Config, v string) error { return setBool(&c.Metrics.Insecure, v) }},
	{"tracing.enabled", func(c *Config, v string) error { return setBool(&c.Tracing.Enabled, v) }},
	{"tracing.endpoint", func(c *Config, v string) error { c.Tracing.Endpoint = v; return nil }},
	{"tracing.insecure", func(c *Config, v string) error { return setBool(&c.Tracing.Insecure, v) }},
	{"tracing.sampling", func(c *Config, v string) error { return setFloat(&c.Tracing.Sampling, v) }},
}

// newEnvViper returns a viper instance reading SEEDPOST_* variables,
// e.g. listing.url from SEEDPOST_LISTING_URL
func newEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// EnvName returns the environment variable that overrides key
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// applyOverrides copies every set viper key onto the config
func applyOverrides(v *viper.Viper, c *Config) error {
	for _, o := range overrides {
		if err := v.BindEnv(o.key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", o.key, err)
		}
		if !v.IsSet(o.key) {
			continue
		}
		if err := o.set(c, v.GetString(o.key)); err != nil {
			return fmt.Errorf("invalid value for %s (%s): %w", o.key, EnvName(o.key), err)
		}
	}
	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, value string) error {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setBool(dst *bool, value string) error {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setFloat(dst *float64, value string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

// splitList parses a comma-separated environment value
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) filter() *FilterConfig {
	if c.Listing.Filter == nil {
		c.Listing.Filter = &FilterConfig{}
	}
	return c.Listing.Filter
}
