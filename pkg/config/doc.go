// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	SPECDOCK_HOST="0.0.0.0"
//	SPECDOCK_PORT="8080"
//	SPECDOCK_READ_TIMEOUT="15s"
//	SPECDOCK_WRITE_TIMEOUT="15s"
//	SPECDOCK_MAX_BODY_BYTES="10485760"
//
// Fetch settings:
//
//	SPECDOCK_FETCH_TIMEOUT="5s"
//	SPECDOCK_FETCH_CACHE_SIZE="128"
//	SPECDOCK_FETCH_CACHE_TTL="5m"
//
// Schema settings:
//
//	SPECDOCK_SCHEMA_V3_SOURCES="oas3-core=https://...,vendor-extension=https://..."
//	SPECDOCK_SCHEMA_V2_SOURCES="swagger2-core=https://..."
//	SPECDOCK_SCHEMA_CACHE_TTL="1h"
//
// Refresh settings (the refresh job runs inside the server process):
//
//	SPECDOCK_REFRESH_ENABLED="true"
//	SPECDOCK_REFRESH_WORKERS="4"
//	SPECDOCK_REFRESH_SCHEDULE="0 3 * * *"  # cron expression
//	SPECDOCK_REFRESH_DRY_RUN="false"
//
// Observability settings:
//
//	SPECDOCK_LOG_LEVEL="info"  # debug, info, warn, error
//	SPECDOCK_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/schema: Uses schema source configuration
//   - pkg/observability: Uses observability configuration
package config
