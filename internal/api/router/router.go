package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-gateway/internal/appointments"
	"github.com/wolfman30/clinic-gateway/internal/clinic"
	httpmiddleware "github.com/wolfman30/clinic-gateway/internal/http/middleware"
	"github.com/wolfman30/clinic-gateway/internal/http/respond"
	"github.com/wolfman30/clinic-gateway/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ClinicHandler       *clinic.Handler
	AppointmentsHandler *appointments.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.ForwardCredentials)
		if cfg.ClinicHandler != nil {
			cfg.ClinicHandler.Register(api)
		}
		if cfg.AppointmentsHandler != nil {
			cfg.AppointmentsHandler.Register(api)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusNotFound, "not found")
	})
	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
