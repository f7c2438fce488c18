package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/elonfeng/asoradar/pkg/aso"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Market    MarketConfig    `yaml:"market"`
	Source    SourceConfig    `yaml:"source"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Batch     BatchConfig     `yaml:"batch"`
	Watch     WatchConfig     `yaml:"watch"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// MarketConfig selects the marketplace and the session settings.
type MarketConfig struct {
	Store      string `yaml:"store" validate:"oneof=gplay itunes"`
	Country    string `yaml:"country" validate:"len=2"`
	Language   string `yaml:"language" validate:"required"`
	ThrottleMS int    `yaml:"throttle_ms" validate:"gte=0"`
	TimeoutMS  int    `yaml:"timeout_ms" validate:"gte=0"`
	Cache      bool   `yaml:"cache"` // accepted, currently has no effect
	RetryDelay string `yaml:"retry_delay"`
}

// Session returns the session configuration.
func (m MarketConfig) Session() aso.Config {
	return aso.Config{
		Country:    m.Country,
		Language:   m.Language,
		Throttle:   time.Duration(m.ThrottleMS) * time.Millisecond,
		Timeout:    time.Duration(m.TimeoutMS) * time.Millisecond,
		Cache:      m.Cache,
		RetryDelay: parseDuration(m.RetryDelay, time.Second),
	}
}

// SourceConfig selects where marketplace data comes from: the live store
// over HTTP or an imported snapshot database.
type SourceConfig struct {
	Kind string `yaml:"kind" validate:"oneof=http snapshot"`
	DSN  string `yaml:"dsn" validate:"required_if=Kind snapshot"`
}

// ExtractorConfig configures keyword extraction. An empty provider uses
// the built-in tokenizer.
type ExtractorConfig struct {
	Provider  string   `yaml:"provider" validate:"omitempty,oneof=tokenizer openai anthropic gemini"`
	Model     string   `yaml:"model"`
	APIKey    string   `yaml:"api_key"`
	BaseURL   string   `yaml:"base_url"` // custom endpoint (optional)
	Limit     int      `yaml:"limit" validate:"gte=0"`
	Stopwords []string `yaml:"stopwords"` // added to the built-in list
}

// UsesLLM reports whether an LLM provider is configured.
func (e ExtractorConfig) UsesLLM() bool {
	return e.Provider != "" && e.Provider != "tokenizer"
}

// BatchConfig configures multi-keyword analysis.
type BatchConfig struct {
	Concurrency int    `yaml:"concurrency" validate:"gte=1"`
	Pause       string `yaml:"pause"`
}

// ParsePause returns the pause between chunks as time.Duration.
func (b BatchConfig) ParsePause() time.Duration {
	return parseDuration(b.Pause, time.Second)
}

// WatchConfig configures the keyword watchlist.
type WatchConfig struct {
	Keywords       []string `yaml:"keywords"`
	Interval       string   `yaml:"interval"`
	MinOpportunity float64  `yaml:"min_opportunity" validate:"gte=0,lte=10"`
}

// ParseInterval returns the watch interval as time.Duration.
func (w WatchConfig) ParseInterval() time.Duration {
	return parseDuration(w.Interval, 6*time.Hour)
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url" validate:"required_if=Enabled true,omitempty,url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url" validate:"required_if=Enabled true,omitempty,url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"required_if=Enabled true,omitempty,url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" validate:"gte=1,lte=65535"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit" validate:"gte=0"` // requests per second, 0 disables
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint" validate:"required_if=Enabled true"`
	ServiceName string `yaml:"service_name"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	session := aso.DefaultConfig()
	return &Config{
		Market: MarketConfig{
			Store:      string(aso.GooglePlay),
			Country:    session.Country,
			Language:   session.Language,
			ThrottleMS: int(session.Throttle / time.Millisecond),
			TimeoutMS:  int(session.Timeout / time.Millisecond),
			Cache:      session.Cache,
			RetryDelay: session.RetryDelay.String(),
		},
		Source: SourceConfig{Kind: "http"},
		Batch: BatchConfig{
			Concurrency: 3,
			Pause:       "1s",
		},
		Watch: WatchConfig{
			Interval:       "6h",
			MinOpportunity: 7,
		},
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4317",
			ServiceName: "asoradar",
		},
	}
}

// Load reads a .env file if present, then configuration from a YAML file,
// applies env var overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// loadDotEnv exports the variables of an env file without overriding
// variables already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ASORADAR_STORE"); v != "" {
		cfg.Market.Store = v
	}
	if v := os.Getenv("ASORADAR_COUNTRY"); v != "" {
		cfg.Market.Country = strings.ToLower(v)
	}
	if v := os.Getenv("ASORADAR_LANGUAGE"); v != "" {
		cfg.Market.Language = v
	}
	if v := os.Getenv("ASORADAR_SNAPSHOT_DSN"); v != "" {
		cfg.Source.DSN = v
		cfg.Source.Kind = "snapshot"
	}
	if v := os.Getenv("ASORADAR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if cfg.Extractor.APIKey == "" {
		applyAPIKey(&cfg.Extractor)
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
		cfg.Tracing.Enabled = true
	}
}

var providerKeys = []struct{ provider, env string }{
	{"openai", "OPENAI_API_KEY"},
	{"anthropic", "ANTHROPIC_API_KEY"},
	{"gemini", "GEMINI_API_KEY"},
}

// applyAPIKey fills the extractor key from the provider's env var. With no
// provider configured, the first provider whose key is set is selected.
func applyAPIKey(e *ExtractorConfig) {
	for _, pk := range providerKeys {
		if e.Provider != "" && e.Provider != pk.provider {
			continue
		}
		if v := os.Getenv(pk.env); v != "" {
			e.APIKey = v
			e.Provider = pk.provider
			return
		}
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
