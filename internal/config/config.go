// Package config provides configuration management for the pizza board server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultServerPort      = 8080
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsEnabled  = true
	DefaultAuthMode        = "none"
	DefaultAllowedOrigins  = "*"
)

// Environment variable names.
const (
	EnvServerPort      = "PIZZA_SERVER_PORT"
	EnvLogLevel        = "PIZZA_LOG_LEVEL"
	EnvShutdownTimeout = "PIZZA_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled  = "PIZZA_METRICS_ENABLED"
	EnvAuthMode        = "PIZZA_AUTH_MODE"
	EnvBasicAuthUsers  = "PIZZA_BASIC_AUTH_USERS"
	EnvAPIKeys         = "PIZZA_API_KEYS" //nolint:gosec // env var name, not a credential
	EnvAllowedOrigins  = "PIZZA_ALLOWED_ORIGINS"
)

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerPort      int
	LogLevel        string
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
	AllowedOrigins  []string

	// Authentication mode: none, basic, apikey, multi.
	AuthMode string

	// Basic auth settings (format: "user1:bcrypt_hash,user2:bcrypt_hash").
	BasicAuthUsers string

	// API key settings (format: "key1:name1,key2:name2").
	APIKeys string
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidAuthMode        = errors.New("auth mode must be one of: none, basic, apikey, multi")
	ErrInvalidBasicAuthConfig = errors.New(
		"basic auth users must be set when auth mode is basic",
	)
	ErrInvalidAPIKeyConfig = errors.New(
		"API keys must be set when auth mode is apikey",
	)
	ErrInvalidMultiAuthConfig = errors.New(
		"at least one auth config must be provided when auth mode is multi",
	)
	ErrNoAllowedOrigins = errors.New("at least one allowed origin must be set")
)

// Load reads configuration from environment variables with defaults.
// Environment variables have priority over default values.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:      DefaultServerPort,
		LogLevel:        DefaultLogLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsEnabled:  DefaultMetricsEnabled,
		AllowedOrigins:  splitList(DefaultAllowedOrigins),
		AuthMode:        DefaultAuthMode,
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromEnv loads configuration values from environment variables.
func (c *Config) loadFromEnv() error {
	if err := c.loadServerEnv(); err != nil {
		return err
	}

	c.loadAuthEnv()

	return nil
}

// loadServerEnv loads server-related environment variables.
func (c *Config) loadServerEnv() error {
	if val := os.Getenv(EnvServerPort); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvServerPort, err)
		}
		c.ServerPort = port
	}

	if val := os.Getenv(EnvLogLevel); val != "" {
		c.LogLevel = val
	}

	if val := os.Getenv(EnvShutdownTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvShutdownTimeout, err)
		}
		c.ShutdownTimeout = timeout
	}

	if val := os.Getenv(EnvMetricsEnabled); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMetricsEnabled, err)
		}
		c.MetricsEnabled = enabled
	}

	if val := os.Getenv(EnvAllowedOrigins); val != "" {
		c.AllowedOrigins = splitList(val)
	}

	return nil
}

// loadAuthEnv loads authentication environment variables.
func (c *Config) loadAuthEnv() {
	if val := os.Getenv(EnvAuthMode); val != "" {
		c.AuthMode = val
	}

	if val := os.Getenv(EnvBasicAuthUsers); val != "" {
		c.BasicAuthUsers = val
	}

	if val := os.Getenv(EnvAPIKeys); val != "" {
		c.APIKeys = val
	}
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateAuth(); err != nil {
		return err
	}

	return nil
}

// validateServer validates server-related configuration.
func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	if len(c.AllowedOrigins) == 0 {
		return ErrNoAllowedOrigins
	}

	return nil
}

// validateAuth validates the auth mode and its mode-specific requirements.
func (c *Config) validateAuth() error {
	switch c.authModeOrDefault() {
	case "none":
	case "basic":
		if c.BasicAuthUsers == "" {
			return ErrInvalidBasicAuthConfig
		}
	case "apikey":
		if c.APIKeys == "" {
			return ErrInvalidAPIKeyConfig
		}
	case "multi":
		if c.BasicAuthUsers == "" && c.APIKeys == "" {
			return ErrInvalidMultiAuthConfig
		}
	default:
		return ErrInvalidAuthMode
	}

	return nil
}

// authModeOrDefault returns the auth mode, defaulting to "none" if empty.
func (c *Config) authModeOrDefault() string {
	if c.AuthMode == "" {
		return DefaultAuthMode
	}
	return c.AuthMode
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
