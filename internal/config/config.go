/**
 * Configuration for the OCR worker
 *
 * Values come from defaults, an optional ocr-worker.yaml and environment variables
 * (environment wins). Environment names match .env.
 */

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/adverant/nexus/ocr-worker/internal/ocr"
)

// ConfigFileName is the base name for the optional configuration file
const ConfigFileName = "ocr-worker"

// Engine names accepted by OCR_ENGINE
const (
	EngineCLI       = ocr.EngineCLI
	EngineGosseract = ocr.EngineGosseract
)

// Config holds worker configuration
type Config struct {
	// Redis configuration (queue, status tracking, result cache)
	RedisURL  string `mapstructure:"redis_url"`
	QueueName string `mapstructure:"queue_name"`

	// PostgreSQL configuration
	DatabaseURL string `mapstructure:"database_url"`

	// Qdrant word index configuration
	QdrantURL        string `mapstructure:"qdrant_url"`
	QdrantCollection string `mapstructure:"qdrant_collection"`

	// Worker configuration
	WorkerConcurrency int           `mapstructure:"worker_concurrency"`
	ProcessingTimeout int           `mapstructure:"processing_timeout"` // milliseconds
	MaxRetries        int           `mapstructure:"max_retries"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	MetricsAddr       string        `mapstructure:"metrics_addr"`

	// Tesseract configuration
	TesseractPath string `mapstructure:"tesseract_path"`
	Engine        string `mapstructure:"ocr_engine"`
	OCROptions    string `mapstructure:"ocr_options"` // comma separated engine flags

	// Temporary directory for engine output
	TempDir string `mapstructure:"temp_dir"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

var defaults = map[string]interface{}{
	"redis_url":          "redis://localhost:6379/0",
	"queue_name":         "ocr",
	"database_url":       "",
	"qdrant_url":         "localhost:6334",
	"qdrant_collection":  "ocr_words",
	"worker_concurrency": 4,
	"processing_timeout": 120000, // 2 minutes
	"max_retries":        3,
	"cache_ttl":          "24h",
	"metrics_addr":       ":9102",
	"tesseract_path":     "tesseract",
	"ocr_engine":         EngineCLI,
	"ocr_options":        "",
	"temp_dir":           "",
	"log_level":          "info",
	"log_format":         "json",
}

// Option adjusts how Load resolves configuration
type Option func(defaults map[string]interface{})

// WithDefault replaces the built-in default for key. Use it for defaults that
// a bound flag advertises, since viper ranks SetDefault above an unchanged flag.
func WithDefault(key string, value interface{}) Option {
	return func(defaults map[string]interface{}) {
		defaults[key] = value
	}
}

// LoadConfig loads and validates configuration
func LoadConfig() (*Config, error) {
	return Load(viper.New(), "")
}

// Load resolves configuration on v. A non-empty configFile is read explicitly,
// otherwise ocr-worker.yaml is searched in the working directory and /etc/ocr-worker.
func Load(v *viper.Viper, configFile string, opts ...Option) (*Config, error) {
	resolved := make(map[string]interface{}, len(defaults))
	for key, value := range defaults {
		resolved[key] = value
	}
	for _, opt := range opts {
		opt(resolved)
	}
	for key, value := range resolved {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ocr-worker")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.ProcessingTimeout < 1000 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1000ms, got %d", c.ProcessingTimeout)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}

	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative, got %v", c.CacheTTL)
	}

	switch c.Engine {
	case EngineCLI, EngineGosseract:
	default:
		return fmt.Errorf("OCR_ENGINE must be %q or %q, got %q", EngineCLI, EngineGosseract, c.Engine)
	}

	if c.Engine == EngineCLI && c.TesseractPath == "" {
		return fmt.Errorf("TESSERACT_PATH is required for the cli engine")
	}

	return nil
}

// ValidateWorker checks the settings only the queue worker needs
func (c *Config) ValidateWorker() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.QdrantURL == "" || c.QdrantCollection == "" {
		return fmt.Errorf("QDRANT_URL and QDRANT_COLLECTION are required")
	}

	return nil
}

// ProcessingTimeoutDuration returns the per-job timeout
func (c *Config) ProcessingTimeoutDuration() time.Duration {
	return time.Duration(c.ProcessingTimeout) * time.Millisecond
}

// Options splits OCR_OPTIONS into engine flags, one flag (with its value) per element
func (c *Config) Options() []string {
	var opts []string
	for _, part := range strings.Split(c.OCROptions, ",") {
		if part = strings.TrimSpace(part); part != "" {
			opts = append(opts, part)
		}
	}
	return opts
}
