package config

import (
	"testing"
	"time"

	"github.com/specdock/specdock/pkg/schema"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{name: "returns true for 'true'", envValue: "true", want: true},
		{name: "returns true for '1'", envValue: "1", want: true},
		{name: "returns false for 'false'", defaultValue: true, envValue: "false", want: false},
		{name: "returns default when not set", defaultValue: true, envValue: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_BOOL", tt.envValue)
			}

			got := getEnvBool("TEST_BOOL", tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "45s")
	if got := getEnvDuration("TEST_DURATION", time.Minute); got != 45*time.Second {
		t.Errorf("getEnvDuration() = %v, want 45s", got)
	}

	t.Setenv("TEST_DURATION", "not-a-duration")
	if got := getEnvDuration("TEST_DURATION", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration() = %v, want default", got)
	}
}

// TestLoadConfigDefaults tests that defaults load and validate
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Fetch.Timeout != 5*time.Second {
		t.Errorf("Fetch.Timeout = %v, want 5s", cfg.Fetch.Timeout)
	}
	if len(cfg.Schema.V3Sources) != 2 ||
		cfg.Schema.V3Sources[0].Name != "oas3-core" ||
		cfg.Schema.V3Sources[1].Name != "specdock-extension" {
		t.Errorf("Schema.V3Sources = %v, want oas3-core and specdock-extension sources", cfg.Schema.V3Sources)
	}
	if cfg.Schema.V3Sources[1].URL != schema.DefaultExtensionSchemaURL {
		t.Errorf("Schema.V3Sources[1].URL = %v, want the default extension schema", cfg.Schema.V3Sources[1].URL)
	}
	if len(cfg.Schema.V2Sources) != 1 || cfg.Schema.V2Sources[0].Name != "swagger2-core" {
		t.Errorf("Schema.V2Sources = %v, want one swagger2-core source", cfg.Schema.V2Sources)
	}
	if cfg.Refresh.Workers != 4 {
		t.Errorf("Refresh.Workers = %v, want 4", cfg.Refresh.Workers)
	}
	if !cfg.Refresh.Enabled {
		t.Error("Refresh.Enabled = false, want enabled by default")
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("Observability.LogLevel = %v, want info", cfg.Observability.LogLevel)
	}
}

// TestLoadConfigOverrides tests environment variable overrides
func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SPECDOCK_PORT", "9999")
	t.Setenv("SPECDOCK_FETCH_TIMEOUT", "2s")
	t.Setenv("SPECDOCK_REFRESH_WORKERS", "8")
	t.Setenv("SPECDOCK_SCHEMA_V3_SOURCES", "oas3-core=https://example.com/oas3.js, vendor-extension=https://example.com/ext.json")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9999" {
		t.Errorf("Server.Port = %v, want 9999", cfg.Server.Port)
	}
	if cfg.Fetch.Timeout != 2*time.Second {
		t.Errorf("Fetch.Timeout = %v, want 2s", cfg.Fetch.Timeout)
	}
	if cfg.Refresh.Workers != 8 {
		t.Errorf("Refresh.Workers = %v, want 8", cfg.Refresh.Workers)
	}
	if len(cfg.Schema.V3Sources) != 2 {
		t.Fatalf("Schema.V3Sources = %v, want 2 sources", cfg.Schema.V3Sources)
	}
	if cfg.Schema.V3Sources[1].Name != "vendor-extension" {
		t.Errorf("second v3 source = %v, want vendor-extension", cfg.Schema.V3Sources[1])
	}
}

// TestParseSchemaSources tests ordered parsing of name=url pairs
func TestParseSchemaSources(t *testing.T) {
	sources := parseSchemaSources("a=https://x, ,broken, b=https://y")
	if len(sources) != 2 {
		t.Fatalf("parseSchemaSources() = %v, want 2 sources", sources)
	}
	if sources[0].Name != "a" || sources[1].Name != "b" {
		t.Errorf("source order = %v, want a then b", sources)
	}
}

// TestValidate tests configuration validation failures
func TestValidate(t *testing.T) {
	t.Setenv("SPECDOCK_SCHEMA_V3_SOURCES", "broken")
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() with no v3 schemas should fail")
	}
}
