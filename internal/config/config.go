// Package config loads and validates the service configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the RDM_ prefix (e.g., RDM_REDIS_ADDR
// overrides redis.addr in the YAML). This layering allows the same binary to
// run with a config.yaml in local development and with pure environment
// variables in containerized deployments.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Email     EmailConfig     `mapstructure:"email"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	PublicURL    string        `mapstructure:"public_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GetPublicURL returns the public-facing URL used in confirmation links and
// redirects. When server.public_url is set it is returned as-is; otherwise it
// falls back to server.base_url. The distinction matters behind a reverse
// proxy, where the internal listen address differs from the published one.
func (s *ServerConfig) GetPublicURL() string {
	if s.PublicURL != "" {
		return s.PublicURL
	}
	return s.BaseURL
}

// GetAddress returns the server address in host:port format.
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisConfig holds the Redis connection settings. An empty Addr switches the
// service to the in-memory store, which is single-instance only and loses all
// registrations on restart, acceptable for local development and nothing else.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Configured reports whether a Redis address is set.
func (r *RedisConfig) Configured() bool { return r.Addr != "" }

// GitHubConfig holds GitHub API access configuration.
type GitHubConfig struct {
	// Token is an optional personal access token used for API calls when no
	// App installation covers the repository. Raises the rate limit from 60
	// to 5000 requests per hour.
	Token string `mapstructure:"token"`

	App GitHubAppConfig `mapstructure:"app"`
}

// GitHubAppConfig holds GitHub App credentials. All three fields empty means
// the App integration is disabled and verification relies on .roadmapper
// files alone.
type GitHubAppConfig struct {
	AppID string `mapstructure:"app_id"`

	// PrivateKey is the App's RSA private key, either raw PEM or
	// base64-encoded PEM (easier to pass through env vars).
	PrivateKey string `mapstructure:"private_key"`

	WebhookSecret string `mapstructure:"webhook_secret"`
}

// EmailConfig holds outbound mail settings for registration confirmation.
// An empty Host disables email confirmation entirely: registrations are then
// created pre-confirmed.
type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// This is necessary because AutomaticEnv() doesn't work well with nested
// structs during Unmarshal. viper.BindEnv only errors when called with zero
// keys; since every key here is a non-empty hardcoded string, any error
// indicates a programming bug and is surfaced to the caller.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Server
		"server.host",
		"server.port",
		"server.base_url",
		"server.public_url",
		"server.read_timeout",
		"server.write_timeout",

		// Redis
		"redis.addr",
		"redis.password",
		"redis.db",

		// GitHub
		"github.token",
		"github.app.app_id",
		"github.app.private_key",
		"github.app.webhook_secret",

		// Email
		"email.host",
		"email.port",
		"email.username",
		"email.password",
		"email.from",

		// Logging
		"logging.level",
		"logging.format",

		// Telemetry
		"telemetry.enabled",
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/roadmapper")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables.
	}

	v.SetEnvPrefix("RDM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand ${VAR_NAME} references in sensitive fields.
	cfg.Redis.Password = os.ExpandEnv(cfg.Redis.Password)
	cfg.GitHub.Token = os.ExpandEnv(cfg.GitHub.Token)
	cfg.GitHub.App.PrivateKey = os.ExpandEnv(cfg.GitHub.App.PrivateKey)
	cfg.GitHub.App.WebhookSecret = os.ExpandEnv(cfg.GitHub.App.WebhookSecret)
	cfg.Email.Password = os.ExpandEnv(cfg.Email.Password)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")

	// Redis defaults. An empty addr selects the in-memory store
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	// Email defaults
	v.SetDefault("email.port", 587)
	v.SetDefault("email.from", "noreply@roadmapper.rocketstack.co")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}

	// App credentials are all-or-nothing: a half-configured App would pass
	// startup and then fail on the first installation lookup.
	app := c.GitHub.App
	if (app.AppID != "") != (app.PrivateKey != "") {
		return fmt.Errorf("github.app.app_id and github.app.private_key must be set together")
	}

	if c.Email.Host != "" && c.Email.From == "" {
		return fmt.Errorf("email.from is required when email.host is set")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}
