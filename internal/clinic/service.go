// Package clinic provides the clinic-wide read model: professional rosters,
// aggregated schedules, patient lookups, and appointment enrichment over a
// backend whose response shapes and identifier encodings vary by endpoint.
package clinic

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/wolfman30/clinic-gateway/internal/backend"
	"github.com/wolfman30/clinic-gateway/internal/observability/metrics"
	"github.com/wolfman30/clinic-gateway/pkg/logging"
)

var tracer = otel.Tracer("clinic-gateway.internal.clinic")

var (
	ErrClinicIDRequired  = errors.New("clinic: clinic id is required")
	ErrPatientIDRequired = errors.New("clinic: patient id is required")
	ErrPatientNotFound   = errors.New("clinic: patient not found")
)

// PatientLookup resolves canonical patient ids to display data for the
// caller in ctx.
type PatientLookup interface {
	Get(ctx context.Context, patientID string) (PatientRef, error)
}

// Config wires a Service.
type Config struct {
	API      backend.Requester
	Patients PatientLookup
	Logger   *logging.Logger
	Metrics  *metrics.IntegrationMetrics
}

// Service implements the clinic read operations.
type Service struct {
	api      backend.Requester
	patients PatientLookup
	logger   *logging.Logger
	metrics  *metrics.IntegrationMetrics
}

// NewService validates cfg and builds a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.API == nil {
		return nil, errors.New("clinic: backend API is required")
	}
	if cfg.Patients == nil {
		return nil, errors.New("clinic: patient lookup is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		api:      cfg.API,
		patients: cfg.Patients,
		logger:   logger.Component("clinic"),
		metrics:  cfg.Metrics,
	}, nil
}

func clinicPath(clinicID string, rest ...string) string {
	parts := append([]string{"clinics", url.PathEscape(clinicID)}, rest...)
	return "/" + strings.Join(parts, "/")
}

func requireID(id string, err error) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", err
	}
	return id, nil
}
