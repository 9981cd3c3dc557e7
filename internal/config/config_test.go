package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("BACKEND_BASE_URL", "")
	t.Setenv("BACKEND_TIMEOUT", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.BackendTimeout != 15*time.Second {
		t.Fatalf("expected default backend timeout, got %s", cfg.BackendTimeout)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error without backend base url")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BACKEND_BASE_URL", "https://api.example.com/v1/")
	t.Setenv("BACKEND_TOKEN", "tok")
	t.Setenv("BACKEND_TIMEOUT", "45")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.BackendBaseURL != "https://api.example.com/v1" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.BackendBaseURL)
	}
	if cfg.BackendTimeout != 45*time.Second {
		t.Fatalf("expected bare seconds parsed, got %s", cfg.BackendTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRefreshRequiresToken(t *testing.T) {
	cfg := &Config{BackendBaseURL: "https://api.example.com", BackendRefreshURL: "https://api.example.com/auth/refresh-token"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when refresh url set without refresh token")
	}
}

func TestDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")
	if got := Load().ShutdownTimeout; got != 10*time.Second {
		t.Fatalf("expected default shutdown timeout, got %s", got)
	}
}

func TestTracingSettings(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	cfg := Load()
	if !cfg.OTelEnabled || cfg.OTelEndpoint != "collector:4317" || cfg.OTelSampleRatio != 0.25 {
		t.Fatalf("unexpected tracing config %+v", cfg)
	}

	t.Setenv("OTEL_ENABLED", "nope")
	t.Setenv("OTEL_SAMPLING_RATIO", "2")
	cfg = Load()
	if cfg.OTelEnabled {
		t.Fatal("expected tracing disabled on unparseable flag")
	}
	if cfg.OTelSampleRatio != 1 {
		t.Fatalf("expected out-of-range ratio to fall back, got %v", cfg.OTelSampleRatio)
	}
}
