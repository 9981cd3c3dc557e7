package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wolfman30/clinic-gateway/internal/api/router"
	"github.com/wolfman30/clinic-gateway/internal/appointments"
	"github.com/wolfman30/clinic-gateway/internal/backend"
	"github.com/wolfman30/clinic-gateway/internal/clinic"
	appconfig "github.com/wolfman30/clinic-gateway/internal/config"
	"github.com/wolfman30/clinic-gateway/internal/observability/metrics"
	"github.com/wolfman30/clinic-gateway/internal/observability/tracing"
	"github.com/wolfman30/clinic-gateway/internal/patientcache"
	"github.com/wolfman30/clinic-gateway/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-gateway API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"backend", cfg.BackendBaseURL,
	)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracing, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: cfg.OTelServiceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	handler, err := buildHandler(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to build gateway", "error", err)
		os.Exit(1)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.BackendTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("failed to flush traces", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildHandler wires the backend client, patient cache, clinic service and
// appointment mutator behind the router.
func buildHandler(cfg *appconfig.Config, logger *logging.Logger, reg *prometheus.Registry) (http.Handler, error) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	integrationMetrics := metrics.NewIntegrationMetrics(reg)

	tokens, err := tokenSource(cfg)
	if err != nil {
		return nil, err
	}
	api, err := backend.New(backend.Config{
		BaseURL:   cfg.BackendBaseURL,
		Tokens:    tokens,
		Timeout:   cfg.BackendTimeout,
		Logger:    logger,
		UserAgent: cfg.BackendUserAgent,
	})
	if err != nil {
		return nil, err
	}

	cache := patientcache.New(clinic.NewPatientFetcher(api), logger, integrationMetrics)
	clinicService, err := clinic.NewService(clinic.Config{
		API:      api,
		Patients: cache,
		Logger:   logger,
		Metrics:  integrationMetrics,
	})
	if err != nil {
		return nil, err
	}
	mutator, err := appointments.NewMutator(appointments.Config{
		API:     api,
		Logger:  logger,
		Metrics: integrationMetrics,
	})
	if err != nil {
		return nil, err
	}

	r := router.New(&router.Config{
		Logger:              logger,
		ClinicHandler:       clinic.NewHandler(clinicService, logger),
		AppointmentsHandler: appointments.NewHandler(mutator, logger),
		MetricsHandler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})
	return otelhttp.NewHandler(r, "clinic-gateway"), nil
}

// tokenSource prefers a refreshing source when a refresh endpoint is set.
func tokenSource(cfg *appconfig.Config) (backend.TokenSource, error) {
	if cfg.BackendRefreshURL == "" {
		return backend.StaticToken(cfg.BackendToken), nil
	}
	src, err := backend.NewRefreshingTokenSource(backend.RefreshingTokenSourceConfig{
		RefreshURL:   cfg.BackendRefreshURL,
		AccessToken:  cfg.BackendToken,
		RefreshToken: cfg.BackendRefreshToken,
		HTTPClient: &http.Client{
			Timeout:   cfg.BackendTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}
