// Package config provides process configuration loaded from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds dummyservice process configuration.
type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"dummyservice"`

	// ConfigFile points at a container config; when empty one is built from the fields below.
	ConfigFile string `envconfig:"CONFIG_FILE"`

	// gRPC endpoint. Port 0 binds an ephemeral port.
	GRPCHost     string `envconfig:"GRPC_HOST" default:"0.0.0.0"`
	GRPCPort     int    `envconfig:"GRPC_PORT" default:"8090"`
	DiscoveryKey string `envconfig:"DISCOVERY_KEY"`

	// NATS, used for discovery and change events when set.
	NATSURL string `envconfig:"NATS_URL"`

	// Database. Empty selects memory persistence.
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// ensure-db: database created when no name is given, and extensions enabled in it.
	EnsureDBName string   `envconfig:"ENSURE_DB_NAME" default:"dummies_test"`
	DBExtensions []string `envconfig:"DB_EXTENSIONS"`

	// HTTP health and metrics endpoint
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// RateLimit caps dispatched calls per second; 0 disables it.
	RateLimit float64 `envconfig:"RATE_LIMIT" default:"0"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("%s - failed to process environment: %w", logPrefix, err)
	}
	return &c, nil
}

// ValidateForServe checks required config when running the service.
func (c *Config) ValidateForServe() error {
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("%s - GRPC_PORT %d is out of range", logPrefix, c.GRPCPort)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%s - SHUTDOWN_TIMEOUT must be positive", logPrefix)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%s - RATE_LIMIT must not be negative", logPrefix)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%s - LOG_FORMAT must be text or json, got %q", logPrefix, c.LogFormat)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear, ensure-db).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}
