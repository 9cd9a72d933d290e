// Package main provides the Refari notifier CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the notifier configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Poller   PollerConfig   `yaml:"poller"`
	Hubstaff HubstaffConfig `yaml:"hubstaff"`
	Verbose  bool           `yaml:"-"` // set via CLI flag
}

// ServerConfig contains listen addresses.
type ServerConfig struct {
	HTTPAddress    string `yaml:"http_address"`    // admin API address (default: :8080)
	MetricsAddress string `yaml:"metrics_address"` // Prometheus address (default: :9091)
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // database file path (default: data/notifier.db)
}

// PollerConfig contains scheduler tuning.
type PollerConfig struct {
	IntervalSeconds    int `yaml:"interval_seconds"`      // poll cycle (default: 60)
	LookbackMinutes    int `yaml:"lookback_minutes"`      // feed window (default: 45)
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"` // per-org notification cap (default: 10)
}

// HubstaffConfig contains the OAuth application credentials. The client
// secret is never read from the file; it comes from the environment.
type HubstaffConfig struct {
	ClientID    string `yaml:"client_id"`
	RedirectURL string `yaml:"redirect_url"`
	APIBaseURL  string `yaml:"api_base_url"` // override for testing
}

// Interval returns the poll interval as a duration.
func (c *PollerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Lookback returns the feed window as a duration.
func (c *PollerConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackMinutes) * time.Minute
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = ":8080"
	}
	if c.Server.MetricsAddress == "" {
		c.Server.MetricsAddress = ":9091"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/notifier.db"
	}
	if c.Poller.IntervalSeconds == 0 {
		c.Poller.IntervalSeconds = 60
	}
	if c.Poller.LookbackMinutes == 0 {
		c.Poller.LookbackMinutes = 45
	}
	if c.Poller.RateLimitPerMinute == 0 {
		c.Poller.RateLimitPerMinute = 10
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Poller.IntervalSeconds < 10 {
		return fmt.Errorf("poller.interval_seconds must be at least 10")
	}
	if c.Poller.LookbackMinutes < 1 {
		return fmt.Errorf("poller.lookback_minutes must be at least 1")
	}
	if c.Poller.Lookback() < c.Poller.Interval() {
		return fmt.Errorf("poller.lookback_minutes must cover at least one poll interval")
	}
	if c.Hubstaff.ClientID != "" && c.Hubstaff.RedirectURL == "" {
		return fmt.Errorf("hubstaff.redirect_url is required when hubstaff.client_id is set")
	}
	return nil
}
