package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the fund scraper.
type Config struct {
	// Eastmoney source settings
	Eastmoney EastmoneyConfig `yaml:"eastmoney"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Collector settings
	Collector CollectorConfig `yaml:"collector"`

	// HTTP transport settings
	HTTP HTTPConfig `yaml:"http"`

	// Storage settings
	Storage StorageConfig `yaml:"storage"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`
}

// EastmoneyConfig holds eastmoney-specific configuration.
type EastmoneyConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIURL    string `yaml:"api_url"`
	UserAgent string `yaml:"user_agent"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// MinInterval is the minimum gap between two requests to the same source.
	MinInterval time.Duration `yaml:"min_interval"`
}

// CollectorConfig holds paginated-collection settings.
type CollectorConfig struct {
	Workers  int `yaml:"workers"`
	PageSize int `yaml:"page_size"`
	// MaxPages caps a listing collection; 0 means no cap.
	MaxPages int `yaml:"max_pages"`
}

// HTTPConfig holds transport settings.
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// StorageConfig holds repository settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Eastmoney: EastmoneyConfig{
			BaseURL:   "https://fund.eastmoney.com",
			APIURL:    "https://fundmobapi.eastmoney.com",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		RateLimit: RateLimitConfig{
			MinInterval: 2 * time.Second,
		},
		Collector: CollectorConfig{
			Workers:  5,
			PageSize: 50,
			MaxPages: 0,
		},
		HTTP: HTTPConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 3,
		},
		Storage: StorageConfig{
			Path: "fundscraper.db",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv overrides configuration from environment variables.
func (c *Config) LoadFromEnv() error {
	if ua := os.Getenv("FUNDSCRAPER_USER_AGENT"); ua != "" {
		c.Eastmoney.UserAgent = ua
	}
	if iv := os.Getenv("FUNDSCRAPER_MIN_INTERVAL"); iv != "" {
		d, err := time.ParseDuration(iv)
		if err != nil {
			return fmt.Errorf("invalid FUNDSCRAPER_MIN_INTERVAL: %w", err)
		}
		c.RateLimit.MinInterval = d
	}
	if workers := os.Getenv("FUNDSCRAPER_WORKERS"); workers != "" {
		var val int
		fmt.Sscanf(workers, "%d", &val)
		if val > 0 {
			c.Collector.Workers = val
		}
	}
	if path := os.Getenv("FUNDSCRAPER_DB_PATH"); path != "" {
		c.Storage.Path = path
	}
	if logLevel := os.Getenv("FUNDSCRAPER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // no config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// findConfigFile searches for a config file in standard locations.
func (c *Config) findConfigFile() string {
	locations := []string{
		".fundscraper.yaml",
		".fundscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "fundscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".fundscraper.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Eastmoney.BaseURL == "" {
		errs = append(errs, errors.New("eastmoney base URL is required"))
	}
	if c.RateLimit.MinInterval < 0 {
		errs = append(errs, errors.New("min interval cannot be negative"))
	}
	if c.Collector.Workers <= 0 {
		errs = append(errs, errors.New("collector workers must be positive"))
	}
	if c.Collector.PageSize <= 0 {
		errs = append(errs, errors.New("collector page size must be positive"))
	} else if c.Collector.PageSize > 200 {
		// The rank endpoint serves at most 200 rows per page; a larger
		// configured size would desynchronize page math from what the
		// source actually returns.
		errs = append(errs, errors.New("collector page size cannot exceed 200"))
	}
	if c.Collector.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http timeout must be positive"))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Load loads configuration from all sources with proper precedence:
// environment variables > .env file > config file > defaults.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".fundscraper.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
