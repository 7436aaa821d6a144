package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	GraphQL  GraphQLConfig  `yaml:"graphql"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Alerts   AlertsConfig   `yaml:"alerts"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// GraphQLConfig configures the platform transport.
type GraphQLConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Timeout   string `yaml:"timeout"`
	Proxy     string `yaml:"proxy"`
	UserAgent string `yaml:"user_agent"`
}

// ParseTimeout returns the request timeout, falling back to 30s.
func (g GraphQLConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(g.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// IngestConfig selects the page stage 1 fetches.
type IngestConfig struct {
	Source   string `yaml:"source"` // "hacktivity" or "leaderboard"
	PageSize int    `yaml:"page_size"`
	Offset   int    `yaml:"offset"`
}

// EnrichConfig bounds stage 2. Limit <= 0 enriches every staged identity.
type EnrichConfig struct {
	Limit int `yaml:"limit"`
}

// ScheduleConfig configures the daemon loop.
type ScheduleConfig struct {
	Interval string `yaml:"interval"`
}

// ParseInterval returns the run interval as time.Duration.
func (s ScheduleConfig) ParseInterval() time.Duration {
	d, err := time.ParseDuration(s.Interval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// AlertsConfig configures run notification destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook notifications.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook notifications.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook notifications.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./bountyscope.db"},
		GraphQL: GraphQLConfig{
			Endpoint: "https://hackerone.com/graphql",
			Timeout:  "30s",
		},
		Ingest: IngestConfig{
			Source:   "hacktivity",
			PageSize: 25,
		},
		Schedule: ScheduleConfig{Interval: "1h"},
		Server:   ServerConfig{Port: 8080},
		Log:      LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
// A .env file in the working directory, if present, is loaded first; it
// never replaces variables already set in the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

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
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Ingest.Source {
	case "hacktivity", "leaderboard":
	default:
		return fmt.Errorf("config: unknown ingest.source %q", c.Ingest.Source)
	}
	if c.Ingest.PageSize <= 0 {
		return fmt.Errorf("config: ingest.page_size must be positive, got %d", c.Ingest.PageSize)
	}
	if c.Ingest.Offset < 0 {
		return fmt.Errorf("config: ingest.offset must not be negative, got %d", c.Ingest.Offset)
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BOUNTYSCOPE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("BOUNTYSCOPE_ENDPOINT"); v != "" {
		cfg.GraphQL.Endpoint = v
	}
	if v := os.Getenv("BOUNTYSCOPE_PROXY"); v != "" {
		cfg.GraphQL.Proxy = v
	}
	if v := os.Getenv("BOUNTYSCOPE_LOG_LEVEL"); v != "" {
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
	if v := os.Getenv("BOUNTYSCOPE_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Webhook.URL = v
		cfg.Alerts.Webhook.Enabled = true
	}
	if v := os.Getenv("BOUNTYSCOPE_WEBHOOK_SECRET"); v != "" {
		cfg.Alerts.Webhook.Secret = v
	}
}
