package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets variables for the duration of the test.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

var envKeys = []string{
	"ASORADAR_STORE", "ASORADAR_COUNTRY", "ASORADAR_LANGUAGE", "ASORADAR_SNAPSHOT_DSN",
	"ASORADAR_LOG_LEVEL", "SLACK_WEBHOOK_URL", "DISCORD_WEBHOOK_URL", "OPENAI_API_KEY",
	"ANTHROPIC_API_KEY", "GEMINI_API_KEY", "OTEL_EXPORTER_OTLP_ENDPOINT",
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	s := cfg.Market.Session()
	assert.Equal(t, "us", s.Country)
	assert.Equal(t, "en", s.Language)
	assert.Equal(t, 20*time.Millisecond, s.Throttle)
	assert.Equal(t, 10*time.Second, s.Timeout)
	assert.Equal(t, time.Second, s.RetryDelay)
	assert.Equal(t, time.Second, cfg.Batch.ParsePause())
	assert.Equal(t, 6*time.Hour, cfg.Watch.ParseInterval())
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t, envKeys...)
	path := writeFile(t, "asoradar.yaml", `
market:
  store: itunes
  country: gb
  throttle_ms: 250
  retry_delay: 2s
source:
  kind: snapshot
  dsn: ./snap.db
extractor:
  provider: anthropic
  stopwords: [pro, lite]
watch:
  keywords: [chess clock, sudoku]
  interval: 30m
  min_opportunity: 8.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "itunes", cfg.Market.Store)
	assert.Equal(t, 250*time.Millisecond, cfg.Market.Session().Throttle)
	assert.Equal(t, 2*time.Second, cfg.Market.Session().RetryDelay)
	assert.Equal(t, "en", cfg.Market.Language)
	assert.Equal(t, "./snap.db", cfg.Source.DSN)
	assert.Equal(t, []string{"pro", "lite"}, cfg.Extractor.Stopwords)
	assert.True(t, cfg.Extractor.UsesLLM())
	assert.Equal(t, []string{"chess clock", "sudoku"}, cfg.Watch.Keywords)
	assert.Equal(t, 30*time.Minute, cfg.Watch.ParseInterval())
	assert.Equal(t, 8.5, cfg.Watch.MinOpportunity)
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t, envKeys...)
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown store", "market:\n  store: amazon\n"},
		{"long country", "market:\n  country: usa\n"},
		{"snapshot without dsn", "source:\n  kind: snapshot\n"},
		{"unknown provider", "extractor:\n  provider: cohere\n"},
		{"slack without url", "alerts:\n  slack:\n    enabled: true\n"},
		{"opportunity out of range", "watch:\n  min_opportunity: 11\n"},
		{"zero concurrency", "batch:\n  concurrency: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "bad.yaml", tt.yaml))
			assert.ErrorContains(t, err, "validate config")
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t, envKeys...)
	t.Setenv("ASORADAR_STORE", "itunes")
	t.Setenv("ASORADAR_COUNTRY", "DE")
	t.Setenv("ASORADAR_SNAPSHOT_DSN", "postgres://localhost/aso")
	t.Setenv("ASORADAR_LOG_LEVEL", "debug")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/x")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "itunes", cfg.Market.Store)
	assert.Equal(t, "de", cfg.Market.Country)
	assert.Equal(t, "snapshot", cfg.Source.Kind)
	assert.Equal(t, "postgres://localhost/aso", cfg.Source.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Alerts.Slack.Enabled)
	assert.Equal(t, "gemini", cfg.Extractor.Provider)
	assert.Equal(t, "g-key", cfg.Extractor.APIKey)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "otel:4317", cfg.Tracing.Endpoint)
}

func TestAPIKeyFollowsConfiguredProvider(t *testing.T) {
	clearEnv(t, envKeys...)
	t.Setenv("OPENAI_API_KEY", "o-key")
	t.Setenv("ANTHROPIC_API_KEY", "a-key")

	e := ExtractorConfig{Provider: "anthropic"}
	applyAPIKey(&e)
	assert.Equal(t, "a-key", e.APIKey)

	e = ExtractorConfig{}
	applyAPIKey(&e)
	assert.Equal(t, "openai", e.Provider)
	assert.Equal(t, "o-key", e.APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t, "ASORADAR_LANGUAGE")
	path := writeFile(t, ".env", "ASORADAR_LANGUAGE=pt\n")

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "pt", os.Getenv("ASORADAR_LANGUAGE"))

	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
