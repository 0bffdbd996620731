package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requiredOverrides supplies the fields that have no default
func requiredOverrides() *viper.Viper {
	v := viper.New()
	v.Set("channel.target", "-1001234567890")
	v.Set("channel.operator", "42")
	v.Set("channel.bot_token", "123:abc")
	return v
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(WithViper(requiredOverrides()))
	require.NoError(t, err)

	assert.Equal(t, "https://www.shanaproject.com", cfg.Listing.URL)
	assert.Equal(t, ListingFormatHTML, cfg.Listing.Format)
	assert.Equal(t, 5, cfg.Listing.Limit)
	assert.Equal(t, time.Hour, cfg.GetPollInterval())
	assert.Equal(t, 2*time.Hour, cfg.GetTransferTimeout())
	assert.Equal(t, 5*time.Second, cfg.GetTransferPollInterval())
	assert.Equal(t, int64(50_000_000), cfg.GetMaxSizeBytes())
	assert.Equal(t, int64(-1001234567890), cfg.Channel.Target)
	assert.Equal(t, int64(42), cfg.Channel.Operator)
	assert.Equal(t, OnCorruptContinue, cfg.Ledger.OnCorrupt)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadConfig_YAMLThenOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `listing:
  url: https://feeds.example.org/latest.rss
  format: rss
  limit: 10
poll:
  interval: "30m"
publish:
  maxSize: "500 MB"
channel:
  target: 100
  operator: 7
  botToken: from-file
  apiEndpoint: http://bot-api.internal:8081/bot%s/%s
ledger:
  path: /var/lib/seedpost/ledger.json
  onCorrupt: halt
`)

	v := viper.New()
	v.Set("poll.interval", "900")
	v.Set("listing.limit", "3")

	cfg, err := LoadConfig(WithConfigPath(path), WithViper(v))
	require.NoError(t, err)

	assert.Equal(t, "https://feeds.example.org/latest.rss", cfg.Listing.URL)
	assert.Equal(t, ListingFormatRSS, cfg.Listing.Format)
	assert.Equal(t, 3, cfg.Listing.Limit)
	assert.Equal(t, 15*time.Minute, cfg.GetPollInterval())
	assert.Equal(t, int64(500_000_000), cfg.GetMaxSizeBytes())
	assert.Equal(t, int64(100), cfg.Channel.Target)
	assert.Equal(t, OnCorruptHalt, cfg.Ledger.OnCorrupt)
	// Fields absent from YAML keep their defaults
	assert.Equal(t, "./downloads", cfg.Download.Root)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		set     map[string]string
		wantErr string
	}{
		{
			name:    "missing channel settings",
			set:     map[string]string{},
			wantErr: "channel.target is required",
		},
		{
			name: "bad listing format",
			set: map[string]string{
				"channel.target": "1", "channel.operator": "2", "channel.bot_token": "t",
				"listing.format": "json",
			},
			wantErr: "listing.format",
		},
		{
			name: "zero poll interval",
			set: map[string]string{
				"channel.target": "1", "channel.operator": "2", "channel.bot_token": "t",
				"poll.interval": "0",
			},
			wantErr: "poll.interval",
		},
		{
			name: "unparseable size",
			set: map[string]string{
				"channel.target": "1", "channel.operator": "2", "channel.bot_token": "t",
				"publish.max_size": "huge",
			},
			wantErr: "publish.maxSize",
		},
		{
			name: "size above public api limit",
			set: map[string]string{
				"channel.target": "1", "channel.operator": "2", "channel.bot_token": "t",
				"publish.max_size": "2GiB",
			},
			wantErr: "upload limit of the public Bot API",
		},
		{
			name: "non numeric operator",
			set: map[string]string{
				"channel.target": "1", "channel.operator": "admin", "channel.bot_token": "t",
			},
			wantErr: "SEEDPOST_CHANNEL_OPERATOR",
		},
		{
			name: "otlp without endpoint",
			set: map[string]string{
				"channel.target": "1", "channel.operator": "2", "channel.bot_token": "t",
				"metrics.enabled": "true", "metrics.exporter": "otlp", "metrics.endpoint": "",
			},
			wantErr: "metrics.endpoint",
		},
		{
			name: "tracing sampling out of range",
			set: map[string]string{
				"channel.target": "1", "channel.operator": "2", "channel.bot_token": "t",
				"tracing.enabled": "true", "tracing.sampling": "1.5",
			},
			wantErr: "tracing.sampling",
		},
		{
			name: "malformed filter pattern",
			set: map[string]string{
				"channel.target": "1", "channel.operator": "2", "channel.bot_token": "t",
				"listing.filter.exclude": "*batch*, [1080p",
			},
			wantErr: "listing.filter.exclude",
		},
		{
			name: "bad corruption policy",
			set: map[string]string{
				"channel.target": "1", "channel.operator": "2", "channel.bot_token": "t",
				"ledger.on_corrupt": "ignore",
			},
			wantErr: "ledger.onCorrupt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := viper.New()
			for key, value := range tt.set {
				v.Set(key, value)
			}

			cfg, err := LoadConfig(WithViper(v))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_MaxSizeFollowsBotAPI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		endpoint string
		maxSize  string
		want     int64
	}{
		{name: "public api default", want: 50_000_000},
		{name: "self-hosted default", endpoint: "http://bot-api:8081/bot%s/%s", want: 2_000_000_000},
		{name: "self-hosted explicit", endpoint: "http://bot-api:8081/bot%s/%s", maxSize: "2GiB", want: 2 << 30},
		{name: "public api below limit", maxSize: "20MB", want: 20_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := requiredOverrides()
			if tt.endpoint != "" {
				v.Set("channel.api_endpoint", tt.endpoint)
			}
			if tt.maxSize != "" {
				v.Set("publish.max_size", tt.maxSize)
			}

			cfg, err := LoadConfig(WithViper(v))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.GetMaxSizeBytes())
		})
	}
}

func TestLoadConfig_TitleFilter(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `listing:
  filter:
    include:
      - "Show A - *"
    exclude:
      - "*batch*"
`)

	v := requiredOverrides()
	v.Set("listing.filter.include", "Show A - *, Show B - *,")

	cfg, err := LoadConfig(WithConfigPath(path), WithViper(v))
	require.NoError(t, err)

	require.NotNil(t, cfg.Listing.Filter)
	assert.Equal(t, []string{"Show A - *", "Show B - *"}, cfg.Listing.Filter.Include)
	assert.Equal(t, []string{"*batch*"}, cfg.Listing.Filter.Exclude)
	assert.False(t, cfg.Listing.Filter.IsEmpty())

	public := cfg.Public()
	assert.Contains(t, public, Setting{Key: "Include", Value: "Show A - *, Show B - *"})
	assert.Contains(t, public, Setting{Key: "Exclude", Value: "*batch*"})
}

func TestFilterConfig_IsEmpty(t *testing.T) {
	t.Parallel()

	var nilFilter *FilterConfig
	assert.True(t, nilFilter.IsEmpty())
	assert.True(t, (&FilterConfig{}).IsEmpty())
	assert.False(t, (&FilterConfig{Exclude: []string{"*"}}).IsEmpty())
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("SEEDPOST_CHANNEL_TARGET", "555")
	t.Setenv("SEEDPOST_CHANNEL_OPERATOR", "9")
	t.Setenv("SEEDPOST_CHANNEL_BOT_TOKEN", "env-token")
	t.Setenv("SEEDPOST_POLL_INTERVAL", "3600")
	t.Setenv("SEEDPOST_DOWNLOAD_ROOT", "/srv/downloads")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, int64(555), cfg.Channel.Target)
	assert.Equal(t, time.Hour, cfg.GetPollInterval())
	assert.Equal(t, "/srv/downloads", cfg.Download.Root)

	token, err := cfg.Channel.GetBotToken()
	require.NoError(t, err)
	assert.Equal(t, "env-token", token)
}

func TestWithConfigPath(t *testing.T) {
	t.Parallel()

	t.Run("empty path", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfig(WithConfigPath(""))
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfig(WithConfigPath(filepath.Join(t.TempDir(), "nope.yaml")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "symlinks")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "listing: [unclosed")
		_, err := LoadConfig(WithConfigPath(path), WithViper(requiredOverrides()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse YAML config")
	})
}

func TestChannelConfig_GetBotToken(t *testing.T) {
	t.Parallel()

	t.Run("file takes priority", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "token")
		require.NoError(t, os.WriteFile(path, []byte("  file-token\n"), 0600))

		c := ChannelConfig{BotToken: "inline", BotTokenFile: path}
		token, err := c.GetBotToken()
		require.NoError(t, err)
		assert.Equal(t, "file-token", token)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		c := ChannelConfig{BotTokenFile: filepath.Join(t.TempDir(), "absent")}
		_, err := c.GetBotToken()
		require.Error(t, err)
	})

	t.Run("nothing configured", func(t *testing.T) {
		t.Parallel()
		c := ChannelConfig{}
		_, err := c.GetBotToken()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SEEDPOST_CHANNEL_BOT_TOKEN")
	})
}

func TestConfig_PublicOmitsSecrets(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(WithViper(requiredOverrides()))
	require.NoError(t, err)

	settings := cfg.Public()
	require.NotEmpty(t, settings)
	assert.Equal(t, "Channel ID", settings[0].Key)
	assert.Equal(t, "-1001234567890", settings[0].Value)

	for _, s := range settings {
		assert.NotContains(t, s.Value, "123:abc")
	}
	assert.Contains(t, settings, Setting{Key: "Max File Size", Value: "2.0 GiB"})
}

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "3600", want: time.Hour},
		{in: "90s", want: 90 * time.Second},
		{in: "2h", want: 2 * time.Hour},
		{in: "", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := parseDuration(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
