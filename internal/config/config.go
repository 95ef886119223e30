// Package config loads the sheetform service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Template formats a deployment can serve.
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig
	Templates TemplateConfig
	Output    OutputConfig
	LogLevel  string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	MaxUploads      int           // uploads kept in memory before the oldest is evicted
	MaxUploadBytes  int64         // request body limit for a workbook upload
	ShutdownTimeout time.Duration // grace period for in-flight requests
}

// TemplateConfig says where templates and mapping tables come from
type TemplateConfig struct {
	Dir          string // used when URL is empty
	URL          string // base URL of an HTTP template store
	Format       string // pdf or xlsx
	MappingsFile string // YAML mapping file, empty for the built-in tables
	FetchTimeout time.Duration
}

// OutputConfig holds packaging settings
type OutputConfig struct {
	ArchiveName        string
	SingleDocument     bool
	OnlyKnownTemplates bool
}

// Load reads configuration from environment variables, applies overrides in
// order and validates the result
func Load(overrides ...func(*Config)) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("PORT", "8080"),
			MaxUploads:      getEnvIntOrDefault("MAX_UPLOADS", 32),
			MaxUploadBytes:  int64(getEnvIntOrDefault("MAX_UPLOAD_MB", 32)) << 20,
			ShutdownTimeout: getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Templates: TemplateConfig{
			Dir:          getEnvOrDefault("TEMPLATE_DIR", "./forms"),
			URL:          os.Getenv("TEMPLATE_URL"),
			Format:       strings.ToLower(getEnvOrDefault("TEMPLATE_FORMAT", FormatPDF)),
			MappingsFile: os.Getenv("MAPPINGS_FILE"),
			FetchTimeout: getEnvDurationOrDefault("TEMPLATE_FETCH_TIMEOUT", 30*time.Second),
		},
		Output: OutputConfig{
			ArchiveName:        getEnvOrDefault("ARCHIVE_NAME", "filled-forms.zip"),
			SingleDocument:     getEnvBoolOrDefault("SINGLE_DOCUMENT", true),
			OnlyKnownTemplates: getEnvBoolOrDefault("ONLY_KNOWN_TEMPLATES", false),
		},
		LogLevel: strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
	}

	for _, override := range overrides {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that settings are usable
func (c *Config) Validate() error {
	switch c.Templates.Format {
	case FormatPDF, FormatXLSX:
	default:
		return fmt.Errorf("TEMPLATE_FORMAT must be %q or %q, got %q", FormatPDF, FormatXLSX, c.Templates.Format)
	}
	if c.Templates.URL == "" && c.Templates.Dir == "" {
		return fmt.Errorf("one of TEMPLATE_DIR or TEMPLATE_URL is required")
	}
	if c.Templates.URL != "" && !strings.HasPrefix(c.Templates.URL, "http://") && !strings.HasPrefix(c.Templates.URL, "https://") {
		return fmt.Errorf("TEMPLATE_URL must be an http(s) URL, got %q", c.Templates.URL)
	}
	if c.Server.MaxUploads < 1 {
		return fmt.Errorf("MAX_UPLOADS must be at least 1")
	}
	if c.Server.MaxUploadBytes < 1 {
		return fmt.Errorf("MAX_UPLOAD_MB must be at least 1")
	}
	if c.Output.ArchiveName == "" {
		return fmt.Errorf("ARCHIVE_NAME must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
