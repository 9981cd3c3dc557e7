package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds gateway configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Backend API the gateway reconciles against
	BackendBaseURL      string
	BackendToken        string
	BackendRefreshURL   string
	BackendRefreshToken string
	BackendTimeout      time.Duration
	BackendUserAgent    string

	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration

	// Tracing export
	OTelEnabled     bool
	OTelServiceName string
	OTelEndpoint    string
	OTelSampleRatio float64
}

// Load reads configuration from environment variables, after merging a local
// .env file when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackendBaseURL:      strings.TrimRight(strings.TrimSpace(getEnv("BACKEND_BASE_URL", "")), "/"),
		BackendToken:        getEnv("BACKEND_TOKEN", ""),
		BackendRefreshURL:   getEnv("BACKEND_REFRESH_URL", ""),
		BackendRefreshToken: getEnv("BACKEND_REFRESH_TOKEN", ""),
		BackendTimeout:      getEnvAsDuration("BACKEND_TIMEOUT", 15*time.Second),
		BackendUserAgent:    getEnv("BACKEND_USER_AGENT", "clinic-gateway/0.1"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		ShutdownTimeout:    getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		OTelEnabled:     getEnvAsBool("OTEL_ENABLED", false),
		OTelServiceName: getEnv("OTEL_SERVICE_NAME", "clinic-gateway"),
		OTelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSampleRatio: getEnvAsRatio("OTEL_SAMPLING_RATIO", 1),
	}
}

// Validate reports configuration the gateway cannot start without.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil config")
	}
	if c.BackendBaseURL == "" {
		return errors.New("config: BACKEND_BASE_URL is required")
	}
	if c.BackendRefreshURL != "" && c.BackendRefreshToken == "" {
		return errors.New("config: BACKEND_REFRESH_TOKEN is required when BACKEND_REFRESH_URL is set")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("30s") or bare seconds ("30").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if n, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(n) * time.Second
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsRatio accepts a float in [0, 1].
func getEnvAsRatio(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil || value < 0 || value > 1 {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
