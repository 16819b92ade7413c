// Package config provides configuration management for the memory pipeline.
// It loads settings from environment variables with the SAFESPACE_ prefix
// and provides sensible defaults for all configuration options.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration settings for the memory pipeline.
type Config struct {
	Storage    StorageConfig
	Extraction ExtractionConfig
	Pipeline   PipelineConfig
	Rules      RulesConfig
	Log        LogConfig
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: sqlite, postgres (default: sqlite)
	DataPath      string // Path to data directory (default: ./data)
	PostgresDSN   string // Connection string when StorageEngine is postgres
}

// ExtractionConfig contains remote extraction service settings.
type ExtractionConfig struct {
	URL     string        // Base URL of the extraction service; empty disables remote extraction
	APIKey  string        // Bearer token sent with each request
	Timeout time.Duration // Hard deadline for one extraction call, retries included (default: 20s)

	MaxRetries   int           // Retries after the first attempt (default: 2)
	BackoffFirst time.Duration // Delay before the first retry (default: 250ms)
	BackoffNext  time.Duration // Delay before later retries (default: 800ms)

	RateLimit float64 // Requests per second (default: 5)
	RateBurst int     // Limiter burst (default: 5)

	BreakerMaxFailures uint32        // Consecutive failures before the breaker opens (default: 5)
	BreakerTimeout     time.Duration // Time the breaker stays open (default: 30s)
}

// PipelineConfig contains worker pool and context window settings.
type PipelineConfig struct {
	NumWorkers      int           // Background extraction workers (default: 2)
	QueueSize       int           // Pending job capacity (default: 100)
	ShutdownTimeout time.Duration // Drain timeout on shutdown (default: 30s)
	RecentTurns     int           // User turns sent for context (default: 6)
	KnownFactLimit  int           // Stored facts sent as known facts (default: 50)
}

// RulesConfig points at an optional heuristic rule table override.
type RulesConfig struct {
	OverridePath string // YAML rule file watched for changes; empty uses the embedded table
}

// LogConfig controls logger construction.
type LogConfig struct {
	Mode    string // development or production (default: development)
	Verbose bool   // Enable debug-level extraction tracing (default: false)
}

// LoadConfig loads configuration from environment variables with sensible defaults.
// All environment variables use the SAFESPACE_ prefix.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Storage: StorageConfig{
			StorageEngine: getEnv("SAFESPACE_STORAGE_ENGINE", "sqlite"),
			DataPath:      getEnv("SAFESPACE_DATA_PATH", "./data"),
			PostgresDSN:   getEnv("SAFESPACE_POSTGRES_DSN", ""),
		},
		Extraction: ExtractionConfig{
			URL:                getEnv("SAFESPACE_EXTRACTION_URL", ""),
			APIKey:             getEnv("SAFESPACE_EXTRACTION_API_KEY", ""),
			Timeout:            getEnvDuration("SAFESPACE_EXTRACTION_TIMEOUT", 20*time.Second),
			MaxRetries:         getEnvInt("SAFESPACE_EXTRACTION_MAX_RETRIES", 2),
			BackoffFirst:       getEnvDuration("SAFESPACE_EXTRACTION_BACKOFF_FIRST", 250*time.Millisecond),
			BackoffNext:        getEnvDuration("SAFESPACE_EXTRACTION_BACKOFF_NEXT", 800*time.Millisecond),
			RateLimit:          getEnvFloat("SAFESPACE_EXTRACTION_RATE_LIMIT", 5),
			RateBurst:          getEnvInt("SAFESPACE_EXTRACTION_RATE_BURST", 5),
			BreakerMaxFailures: uint32(getEnvInt("SAFESPACE_BREAKER_MAX_FAILURES", 5)),
			BreakerTimeout:     getEnvDuration("SAFESPACE_BREAKER_TIMEOUT", 30*time.Second),
		},
		Pipeline: PipelineConfig{
			NumWorkers:      getEnvInt("SAFESPACE_WORKERS", 2),
			QueueSize:       getEnvInt("SAFESPACE_QUEUE_SIZE", 100),
			ShutdownTimeout: getEnvDuration("SAFESPACE_SHUTDOWN_TIMEOUT", 30*time.Second),
			RecentTurns:     getEnvInt("SAFESPACE_RECENT_TURNS", 6),
			KnownFactLimit:  getEnvInt("SAFESPACE_KNOWN_FACT_LIMIT", 50),
		},
		Rules: RulesConfig{
			OverridePath: getEnv("SAFESPACE_RULES_PATH", ""),
		},
		Log: LogConfig{
			Mode:    getEnv("SAFESPACE_LOG_MODE", "development"),
			Verbose: getEnvBool("SAFESPACE_VERBOSE", false),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.StorageEngine {
	case "sqlite":
		if strings.TrimSpace(c.Storage.DataPath) == "" {
			return errors.New("config: data path is required for sqlite")
		}
	case "postgres":
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			return errors.New("config: SAFESPACE_POSTGRES_DSN is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.StorageEngine)
	}

	e := c.Extraction
	if e.Timeout <= 0 {
		return errors.New("config: extraction timeout must be positive")
	}
	if e.MaxRetries < 0 {
		return errors.New("config: extraction max retries cannot be negative")
	}
	if e.BackoffFirst < 0 || e.BackoffNext < 0 {
		return errors.New("config: extraction backoff cannot be negative")
	}
	if e.RateLimit <= 0 || e.RateBurst < 1 {
		return errors.New("config: extraction rate limit and burst must be positive")
	}
	if e.BreakerMaxFailures == 0 {
		return errors.New("config: breaker max failures must be at least 1")
	}

	p := c.Pipeline
	if p.NumWorkers < 1 {
		return errors.New("config: workers must be at least 1")
	}
	if p.QueueSize < 1 {
		return errors.New("config: queue size must be at least 1")
	}
	if p.RecentTurns < 1 || p.KnownFactLimit < 1 {
		return errors.New("config: recent turns and known fact limit must be at least 1")
	}
	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("250ms", "20s").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
