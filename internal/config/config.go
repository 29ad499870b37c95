package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Config holds process settings. Values come from an optional YAML file
// (FIBERMIG_CONFIG) and are then overridden by environment variables.
type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	DBMigrate   bool   `yaml:"db_migrate"`
	RedisURL    string `yaml:"redis_url"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	RateRPS   float64 `yaml:"rate_rps"`
	RateBurst int     `yaml:"rate_burst"`

	// ProgressRefreshInterval enables the periodic wave progress refresh when > 0.
	ProgressRefreshInterval time.Duration `yaml:"progress_refresh_interval"`
	ImportBatchSize         int           `yaml:"import_batch_size"`

	// WebhookURL receives broker events as signed POSTs when set.
	WebhookURL         string `yaml:"webhook_url"`
	WebhookSecret      string `yaml:"webhook_secret"`
	WebhookMaxAttempts int    `yaml:"webhook_max_attempts"`
}

func Default() Config {
	return Config{
		Port:            "8080",
		DBMigrate:       true,
		LogLevel:        "info",
		LogFormat:       "json",
		RateRPS:         20,
		RateBurst:       40,
		ImportBatchSize: 100,

		WebhookMaxAttempts: 5,
	}
}

// Load reads the YAML file named by FIBERMIG_CONFIG (if set) and applies
// environment overrides on top.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()
	if path := getenv("FIBERMIG_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("PORT", &cfg.Port)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("REDIS_URL", &cfg.RedisURL)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("WEBHOOK_URL", &cfg.WebhookURL)
	str("WEBHOOK_SECRET", &cfg.WebhookSecret)

	if v := getenv("DB_MIGRATE"); v != "" {
		cfg.DBMigrate = v != "false"
	}
	if v := getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_RPS: %w", err)
		}
		cfg.RateRPS = f
	}
	if v := getenv("RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_BURST: %w", err)
		}
		cfg.RateBurst = n
	}
	if v := getenv("PROGRESS_REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PROGRESS_REFRESH_INTERVAL: %w", err)
		}
		cfg.ProgressRefreshInterval = d
	}
	if v := getenv("IMPORT_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("IMPORT_BATCH_SIZE: %w", err)
		}
		cfg.ImportBatchSize = n
	}
	if v := getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WEBHOOK_MAX_ATTEMPTS: %w", err)
		}
		cfg.WebhookMaxAttempts = n
	}
	return nil
}

func (c Config) validate() error {
	if c.ImportBatchSize <= 0 {
		return fmt.Errorf("import batch size must be positive, got %d", c.ImportBatchSize)
	}
	if c.RateRPS < 0 || c.RateBurst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.WebhookURL != "" && c.WebhookMaxAttempts <= 0 {
		return fmt.Errorf("webhook max attempts must be positive, got %d", c.WebhookMaxAttempts)
	}
	if c.ProgressRefreshInterval < 0 {
		return fmt.Errorf("progress refresh interval must not be negative")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }
