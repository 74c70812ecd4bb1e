package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// CRM backend
	BackendAPIURL string
	BackendToken  string // used when a request carries no session token (CLI, scheduled jobs)
	TenantID      string

	// Session tokens presented by the dashboard. Empty disables signature checks.
	SessionJWTSecret string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Collections
	InvoicePageSize int

	// Notifications
	NotificationPollSchedule string // cron spec, empty disables polling

	// Observability
	OTLPEndpoint string

	// Presentation profile (YAML), optional
	PresentationFile string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackendAPIURL: getEnv("BACKEND_API_URL", "http://localhost:8000/api/v1"),
		BackendToken:  getEnv("BACKEND_TOKEN", ""),
		TenantID:      getEnv("TENANT_ID", ""),

		SessionJWTSecret: getEnv("SESSION_JWT_SECRET", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 30*time.Second),

		InvoicePageSize: getEnvInt("INVOICE_PAGE_SIZE", 100),

		NotificationPollSchedule: getEnv("NOTIFICATION_POLL_SCHEDULE", "@every 1m"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		PresentationFile: getEnv("PRESENTATION_FILE", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
