// Package config provides configuration management for the catalog server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/vyrodovalexey/store-catalog/internal/repository"
)

// Default configuration values.
const (
	DefaultServerPort        = 8080
	DefaultProbePort         = 9090
	DefaultLogLevel          = "info"
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMetricsEnabled    = true
	DefaultWebSocketEnabled  = true
	DefaultStoreDeletePolicy = repository.PolicyOrphan
	DefaultMaxBodyBytes      = 1 << 20 // 1 MB
)

// Environment variable names.
const (
	EnvServerPort        = "APP_SERVER_PORT"
	EnvProbePort         = "APP_PROBE_PORT"
	EnvLogLevel          = "APP_LOG_LEVEL"
	EnvShutdownTimeout   = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled    = "APP_METRICS_ENABLED"
	EnvWebSocketEnabled  = "APP_WEBSOCKET_ENABLED"
	EnvStoreDeletePolicy = "APP_STORE_DELETE_POLICY"
	EnvSeedFile          = "APP_SEED_FILE"
	EnvMaxBodyBytes      = "APP_MAX_BODY_BYTES"
)

// Config holds the application configuration.
type Config struct {
	ServerPort       int
	ProbePort        int // Probe server port (0 = disabled).
	LogLevel         string
	ShutdownTimeout  time.Duration
	MetricsEnabled   bool
	WebSocketEnabled bool

	// StoreDeletePolicy decides what deleting a store does to its items.
	StoreDeletePolicy repository.DeletePolicy

	// SeedFile is an optional YAML or JSON file loaded at startup.
	SeedFile string

	MaxBodyBytes int64
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidProbePort       = errors.New("probe port must be between 0 and 65535")
	ErrProbePortConflict      = errors.New("probe port must differ from server port when probe port is not 0")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidDeletePolicy    = errors.New("store delete policy must be one of: orphan, cascade, restrict")
	ErrInvalidMaxBodyBytes    = errors.New("max body bytes must be positive")
)

// Load reads configuration from environment variables with defaults.
// Environment variables have priority over default values.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:        DefaultServerPort,
		ProbePort:         DefaultProbePort,
		LogLevel:          DefaultLogLevel,
		ShutdownTimeout:   DefaultShutdownTimeout,
		MetricsEnabled:    DefaultMetricsEnabled,
		WebSocketEnabled:  DefaultWebSocketEnabled,
		StoreDeletePolicy: DefaultStoreDeletePolicy,
		MaxBodyBytes:      DefaultMaxBodyBytes,
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

	return c.loadCatalogEnv()
}

// loadServerEnv loads server-related environment variables.
func (c *Config) loadServerEnv() error {
	var err error

	if c.ServerPort, err = intFromEnv(EnvServerPort, c.ServerPort); err != nil {
		return err
	}

	if c.ProbePort, err = intFromEnv(EnvProbePort, c.ProbePort); err != nil {
		return err
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

	if c.MetricsEnabled, err = boolFromEnv(EnvMetricsEnabled, c.MetricsEnabled); err != nil {
		return err
	}

	if c.WebSocketEnabled, err = boolFromEnv(EnvWebSocketEnabled, c.WebSocketEnabled); err != nil {
		return err
	}

	if val := os.Getenv(EnvMaxBodyBytes); val != "" {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMaxBodyBytes, err)
		}
		c.MaxBodyBytes = n
	}

	return nil
}

// loadCatalogEnv loads catalog behaviour settings.
func (c *Config) loadCatalogEnv() error {
	if val := os.Getenv(EnvStoreDeletePolicy); val != "" {
		policy, err := repository.ParseDeletePolicy(val)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDeletePolicy, err)
		}
		c.StoreDeletePolicy = policy
	}

	if val := os.Getenv(EnvSeedFile); val != "" {
		c.SeedFile = val
	}

	return nil
}

func intFromEnv(name string, fallback int) (int, error) {
	val := os.Getenv(name)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	return n, nil
}

func boolFromEnv(name string, fallback bool) (bool, error) {
	val := os.Getenv(name)
	if val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", name, err)
	}
	return b, nil
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if _, err := repository.ParseDeletePolicy(string(c.StoreDeletePolicy)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDeletePolicy, err)
	}

	return nil
}

// validateServer validates server-related configuration.
func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	if c.ProbePort < 0 || c.ProbePort > 65535 {
		return ErrInvalidProbePort
	}

	if c.ProbePort != 0 && c.ProbePort == c.ServerPort {
		return ErrProbePortConflict
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

	if c.MaxBodyBytes <= 0 {
		return ErrInvalidMaxBodyBytes
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// ProbeAddress returns the probe server address in host:port format.
func (c *Config) ProbeAddress() string {
	return fmt.Sprintf(":%d", c.ProbePort)
}
