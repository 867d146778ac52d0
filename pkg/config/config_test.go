package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.RateLimit.MinInterval != 2*time.Second {
		t.Errorf("Expected default min interval to be 2s, got %s", config.RateLimit.MinInterval)
	}

	if config.Collector.Workers != 5 {
		t.Errorf("Expected default workers to be 5, got %d", config.Collector.Workers)
	}

	if config.Collector.PageSize != 50 {
		t.Errorf("Expected default page size to be 50, got %d", config.Collector.PageSize)
	}

	if config.HTTP.Timeout != 10*time.Second {
		t.Errorf("Expected default timeout to be 10s, got %s", config.HTTP.Timeout)
	}

	if config.Storage.Path != "fundscraper.db" {
		t.Errorf("Expected default storage path to be fundscraper.db, got %s", config.Storage.Path)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("FUNDSCRAPER_USER_AGENT", "test-agent/1.0")
	os.Setenv("FUNDSCRAPER_MIN_INTERVAL", "500ms")
	os.Setenv("FUNDSCRAPER_WORKERS", "8")
	os.Setenv("FUNDSCRAPER_DB_PATH", "/tmp/test.db")
	os.Setenv("FUNDSCRAPER_LOG_LEVEL", "debug")

	defer func() {
		os.Unsetenv("FUNDSCRAPER_USER_AGENT")
		os.Unsetenv("FUNDSCRAPER_MIN_INTERVAL")
		os.Unsetenv("FUNDSCRAPER_WORKERS")
		os.Unsetenv("FUNDSCRAPER_DB_PATH")
		os.Unsetenv("FUNDSCRAPER_LOG_LEVEL")
	}()

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Eastmoney.UserAgent != "test-agent/1.0" {
		t.Errorf("Expected user agent override, got %s", config.Eastmoney.UserAgent)
	}
	if config.RateLimit.MinInterval != 500*time.Millisecond {
		t.Errorf("Expected min interval 500ms, got %s", config.RateLimit.MinInterval)
	}
	if config.Collector.Workers != 8 {
		t.Errorf("Expected 8 workers, got %d", config.Collector.Workers)
	}
	if config.Storage.Path != "/tmp/test.db" {
		t.Errorf("Expected storage path /tmp/test.db, got %s", config.Storage.Path)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvInvalidInterval(t *testing.T) {
	os.Setenv("FUNDSCRAPER_MIN_INTERVAL", "not-a-duration")
	defer os.Unsetenv("FUNDSCRAPER_MIN_INTERVAL")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err == nil {
		t.Error("Expected error for invalid min interval")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
collector:
  workers: 10
  page_size: 100
storage:
  path: /tmp/funds.db
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if config.Collector.Workers != 10 {
		t.Errorf("Expected 10 workers, got %d", config.Collector.Workers)
	}
	if config.Collector.PageSize != 100 {
		t.Errorf("Expected page size 100, got %d", config.Collector.PageSize)
	}
	if config.Logging.Level != "warn" {
		t.Errorf("Expected log level warn, got %s", config.Logging.Level)
	}

	// Values absent from the file keep their defaults.
	if config.HTTP.Timeout != 10*time.Second {
		t.Errorf("Expected default timeout to survive, got %s", config.HTTP.Timeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"missing base URL", func(c *Config) { c.Eastmoney.BaseURL = "" }, true},
		{"negative interval", func(c *Config) { c.RateLimit.MinInterval = -time.Second }, true},
		{"zero workers", func(c *Config) { c.Collector.Workers = 0 }, true},
		{"zero page size", func(c *Config) { c.Collector.PageSize = 0 }, true},
		{"oversized page size", func(c *Config) { c.Collector.PageSize = 500 }, true},
		{"negative max pages", func(c *Config) { c.Collector.MaxPages = -1 }, true},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }, true},
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
