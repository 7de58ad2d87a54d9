package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the main structure mapping the entire application configuration.
// This struct uses mapstructure tags to map YAML/JSON keys to Go struct fields.
type Config struct {
	// Server configuration section containing HTTP server settings
	Server struct {
		Port    int    `mapstructure:"port"`     // HTTP server port (default: 8080)
		BaseURL string `mapstructure:"base_url"` // Base URL for generating short links
	} `mapstructure:"server"`

	// Database configuration section for SQLite settings
	Database struct {
		Name string `mapstructure:"name"` // SQLite database file name
	} `mapstructure:"database"`

	// Redis configuration, shared by the cache layer and the job queue
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	// Cache configuration for the link metadata snapshot and click counter
	Cache struct {
		SnapshotTTLSeconds int `mapstructure:"snapshot_ttl_seconds"` // TTL of the metadata snapshot (counter has none)
		OpTimeoutMs        int `mapstructure:"op_timeout_ms"`        // Per-operation timeout for cache calls
	} `mapstructure:"cache"`

	// Queue configuration for the click persistence pipeline
	Queue struct {
		Concurrency int `mapstructure:"concurrency"` // Number of click-sync jobs processed in parallel
	} `mapstructure:"queue"`

	// Links configuration for creation-time business rules
	Links struct {
		// Comma-separated list of forbidden destination substrings,
		// typically supplied via LINKS_FORBIDDEN_DESTINATIONS
		ForbiddenDestinations string `mapstructure:"forbidden_destinations"`
	} `mapstructure:"links"`
}

// SnapshotTTL returns the metadata snapshot TTL as a duration.
func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.Cache.SnapshotTTLSeconds) * time.Second
}

// CacheOpTimeout returns the per-operation cache timeout as a duration.
func (c *Config) CacheOpTimeout() time.Duration {
	return time.Duration(c.Cache.OpTimeoutMs) * time.Millisecond
}

// ForbiddenDestinations splits the configured forbidden-destination list into
// trimmed, non-empty substrings.
func (c *Config) ForbiddenDestinations() []string {
	var out []string
	for _, part := range strings.Split(c.Links.ForbiddenDestinations, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadConfig loads the application configuration using Viper.
// It supports environment variable overrides and YAML configuration files.
// Returns a populated Config struct or an error if configuration loading fails.
func LoadConfig() (*Config, error) {
	// Enable automatic environment variable binding
	// This allows config values to be overridden via environment variables
	viper.AutomaticEnv()

	// Replace dots with underscores in environment variable names
	// e.g., "redis.addr" becomes "REDIS_ADDR"
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Specify the directory path where Viper should look for config files
	viper.AddConfigPath("./configs")

	// Specify the name of the config file (without the extension)
	viper.SetConfigName("config")

	// Specify the type/format of the config file (YAML in this case)
	viper.SetConfigType("yaml")

	// Set default values for all configuration options
	// These will be used if no config file is found or if specific keys are missing
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("database.name", "encurtador.db")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("cache.snapshot_ttl_seconds", 60)
	viper.SetDefault("cache.op_timeout_ms", 250)
	viper.SetDefault("queue.concurrency", 10)
	viper.SetDefault("links.forbidden_destinations", "")

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		// Check if the error is specifically "config file not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// This is not a fatal error - we'll use default values
			log.Println("Config file not found, using default values")
		} else {
			// Any other error (permissions, malformed YAML, etc.) is fatal
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal the loaded configuration into our Config structure
	// This converts the Viper configuration into our strongly-typed struct
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}
