package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/specdock/specdock/pkg/schema"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Fetch configuration
	Fetch FetchConfig

	// Schema configuration
	Schema SchemaConfig

	// Refresh configuration
	Refresh RefreshConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// FetchConfig holds source document retrieval configuration
type FetchConfig struct {
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// SchemaConfig holds validation schema configuration
type SchemaConfig struct {
	// V3Sources and V2Sources are ordered "name=url" pairs; the core
	// schema first, extension schemas after it.
	V3Sources []schema.Source
	V2Sources []schema.Source

	// CacheTTL bounds how long a compiled schema is served before the
	// origin is revalidated.
	CacheTTL time.Duration
}

// RefreshConfig holds the periodic-refresh configuration
type RefreshConfig struct {
	Enabled bool
	Workers int
	// Schedule is a cron expression for the in-process refresh job.
	Schedule string
	DryRun   bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Fetch:         loadFetchConfig(),
		Schema:        loadSchemaConfig(),
		Refresh:       loadRefreshConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SPECDOCK_HOST", "0.0.0.0"),
		Port:            getEnv("SPECDOCK_PORT", "8080"),
		ReadTimeout:     getEnvDuration("SPECDOCK_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SPECDOCK_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("SPECDOCK_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SPECDOCK_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("SPECDOCK_MAX_BODY_BYTES", 10<<20),
	}
}

func loadFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:   getEnvDuration("SPECDOCK_FETCH_TIMEOUT", 5*time.Second),
		CacheSize: getEnvInt("SPECDOCK_FETCH_CACHE_SIZE", 128),
		CacheTTL:  getEnvDuration("SPECDOCK_FETCH_CACHE_TTL", 5*time.Minute),
	}
}

func loadSchemaConfig() SchemaConfig {
	return SchemaConfig{
		V3Sources: parseSchemaSources(
			getEnv("SPECDOCK_SCHEMA_V3_SOURCES",
				"oas3-core="+schema.DefaultOAS3SchemaURL+",specdock-extension="+schema.DefaultExtensionSchemaURL)),
		V2Sources: parseSchemaSources(
			getEnv("SPECDOCK_SCHEMA_V2_SOURCES", "swagger2-core="+schema.DefaultSwagger2SchemaURL)),
		CacheTTL: getEnvDuration("SPECDOCK_SCHEMA_CACHE_TTL", time.Hour),
	}
}

func loadRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Enabled:  getEnvBool("SPECDOCK_REFRESH_ENABLED", true),
		Workers:  getEnvInt("SPECDOCK_REFRESH_WORKERS", 4),
		Schedule: getEnv("SPECDOCK_REFRESH_SCHEDULE", "0 3 * * *"),
		DryRun:   getEnvBool("SPECDOCK_REFRESH_DRY_RUN", false),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       getEnv("SPECDOCK_LOG_LEVEL", "info"),
		MetricsEnabled: getEnvBool("SPECDOCK_METRICS_ENABLED", true),
	}
}

// parseSchemaSources parses a comma-separated list of "name=url" pairs,
// keeping their order. Malformed items are skipped.
func parseSchemaSources(raw string) []schema.Source {
	var sources []schema.Source
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, url, ok := strings.Cut(item, "=")
		if !ok || name == "" || url == "" {
			continue
		}
		sources = append(sources, schema.Source{Name: name, URL: url})
	}
	return sources
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if len(c.Schema.V3Sources) == 0 {
		return fmt.Errorf("at least one v3 validation schema is required")
	}
	if len(c.Schema.V2Sources) == 0 {
		return fmt.Errorf("at least one v2 validation schema is required")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.Refresh.Workers <= 0 {
		return fmt.Errorf("refresh workers must be positive")
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
