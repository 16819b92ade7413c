package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.StorageEngine)
	assert.Equal(t, "./data", cfg.Storage.DataPath)
	assert.Equal(t, "", cfg.Extraction.URL, "remote extraction is off unless configured")
	assert.Equal(t, 20*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, 2, cfg.Extraction.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Extraction.BackoffFirst)
	assert.Equal(t, 800*time.Millisecond, cfg.Extraction.BackoffNext)
	assert.Equal(t, 2, cfg.Pipeline.NumWorkers)
	assert.Equal(t, 6, cfg.Pipeline.RecentTurns)
	assert.False(t, cfg.Log.Verbose)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SAFESPACE_EXTRACTION_URL", "https://extract.example.com")
	t.Setenv("SAFESPACE_EXTRACTION_TIMEOUT", "5s")
	t.Setenv("SAFESPACE_EXTRACTION_MAX_RETRIES", "0")
	t.Setenv("SAFESPACE_WORKERS", "4")
	t.Setenv("SAFESPACE_VERBOSE", "YES")
	t.Setenv("SAFESPACE_RULES_PATH", "/etc/safespace/rules.yaml")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://extract.example.com", cfg.Extraction.URL)
	assert.Equal(t, 5*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, 0, cfg.Extraction.MaxRetries)
	assert.Equal(t, 4, cfg.Pipeline.NumWorkers)
	assert.True(t, cfg.Log.Verbose)
	assert.Equal(t, "/etc/safespace/rules.yaml", cfg.Rules.OverridePath)
}

func TestLoadConfig_UnparseableValuesFallBack(t *testing.T) {
	t.Setenv("SAFESPACE_EXTRACTION_TIMEOUT", "soon")
	t.Setenv("SAFESPACE_QUEUE_SIZE", "lots")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, 100, cfg.Pipeline.QueueSize)
}

func TestLoadConfig_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("SAFESPACE_STORAGE_ENGINE", "postgres")

	_, err := config.LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFESPACE_POSTGRES_DSN")

	t.Setenv("SAFESPACE_POSTGRES_DSN", "postgres://localhost/safespace?sslmode=disable")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.StorageEngine)
}

func TestValidate(t *testing.T) {
	base := func() *config.Config {
		cfg, err := config.LoadConfig()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown engine", func(c *config.Config) { c.Storage.StorageEngine = "mongo" }},
		{"empty data path", func(c *config.Config) { c.Storage.DataPath = "" }},
		{"zero timeout", func(c *config.Config) { c.Extraction.Timeout = 0 }},
		{"negative retries", func(c *config.Config) { c.Extraction.MaxRetries = -1 }},
		{"negative backoff", func(c *config.Config) { c.Extraction.BackoffNext = -time.Second }},
		{"zero rate", func(c *config.Config) { c.Extraction.RateLimit = 0 }},
		{"zero breaker failures", func(c *config.Config) { c.Extraction.BreakerMaxFailures = 0 }},
		{"no workers", func(c *config.Config) { c.Pipeline.NumWorkers = 0 }},
		{"no queue", func(c *config.Config) { c.Pipeline.QueueSize = 0 }},
		{"no recent turns", func(c *config.Config) { c.Pipeline.RecentTurns = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, base().Validate())
}
