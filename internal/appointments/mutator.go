// Package appointments changes remote appointment state. Backend
// deployments disagree on which route and verb accept an update, so updates
// walk an ordered candidate list and a pure classifier decides after each
// attempt whether to stop or move on.
package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-gateway/internal/backend"
	"github.com/wolfman30/clinic-gateway/internal/clinic"
	"github.com/wolfman30/clinic-gateway/internal/envelope"
	"github.com/wolfman30/clinic-gateway/internal/observability/metrics"
	"github.com/wolfman30/clinic-gateway/pkg/logging"
)

var tracer = otel.Tracer("clinic-gateway.internal.appointments")

var (
	ErrAppointmentIDRequired = errors.New("appointments: appointment id is required")
	// ErrExhausted means no candidate route exists on this backend.
	ErrExhausted = errors.New("appointments: no update route accepted the request")
	// ErrChangeRequestUndeliverable means neither escalation channel exists or
	// accepted the request.
	ErrChangeRequestUndeliverable = errors.New("could not request the change; please contact the professional directly")
)

// Decision is the classifier's verdict on one attempt.
type Decision int

const (
	Success Decision = iota
	TryNext
	Fatal
)

func (d Decision) String() string {
	switch d {
	case Success:
		return "success"
	case TryNext:
		return "try_next"
	default:
		return "fatal"
	}
}

// Classify maps one attempt's error onto a Decision. Only a missing route
// moves on; a missing resource, a permission problem or a conflict is final.
func Classify(err error) Decision {
	switch {
	case err == nil:
		return Success
	case backend.IsRoutingMismatch(err):
		return TryNext
	default:
		return Fatal
	}
}

// candidate is one route/verb pair that may accept an update.
type candidate struct {
	method string
	path   func(id string) string
}

var updateCandidates = []candidate{
	{method: http.MethodPut, path: appointmentPath},
	{method: http.MethodPatch, path: appointmentPath},
	{method: http.MethodPut, path: clinicAppointmentPath},
	{method: http.MethodPatch, path: clinicAppointmentPath},
}

func appointmentPath(id string) string       { return "/appointments/" + url.PathEscape(id) }
func clinicAppointmentPath(id string) string { return "/clinic/appointments/" + url.PathEscape(id) }

// Config wires a Mutator.
type Config struct {
	API     backend.Requester
	Logger  *logging.Logger
	Metrics *metrics.IntegrationMetrics
}

// Mutator performs appointment writes.
type Mutator struct {
	api        backend.Requester
	logger     *logging.Logger
	metrics    *metrics.IntegrationMetrics
	candidates []candidate
}

func NewMutator(cfg Config) (*Mutator, error) {
	if cfg.API == nil {
		return nil, errors.New("appointments: backend API is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Mutator{
		api:        cfg.API,
		logger:     logger.Component("appointments"),
		metrics:    cfg.Metrics,
		candidates: updateCandidates,
	}, nil
}

// Update applies fields through the first candidate route the backend
// accepts. A 403 or 409 stops immediately and is returned as the classified
// *backend.Error; running out of routes returns ErrExhausted.
func (m *Mutator) Update(ctx context.Context, id string, fields Fields) (*clinic.Appointment, error) {
	id, err := requireID(id)
	if err != nil {
		return nil, err
	}
	if fields.Empty() {
		return nil, ErrNoChanges
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "appointments.update")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", id))

	var lastErr error
	for i, c := range m.candidates {
		path := c.path(id)
		data, err := m.api.Do(ctx, c.method, path, nil, fields)
		decision := Classify(err)
		m.metrics.ObserveMutationAttempt("update", decision.String())
		m.logger.Debug("appointment update attempt",
			"appointment_id", id,
			"attempt", i+1,
			"method", c.method,
			"path", path,
			"decision", decision.String(),
		)

		switch decision {
		case Success:
			m.metrics.ObserveMutationOutcome("update", "success")
			span.SetAttributes(attribute.String("appointment.route", c.method+" "+path))
			return decodeAppointment(id, data)
		case TryNext:
			lastErr = err
			continue
		default:
			m.metrics.ObserveMutationOutcome("update", failureLabel(err))
			span.RecordError(err)
			if backend.IsConflict(err) {
				m.logger.Warn("appointment update conflict", "appointment_id", id, "error", err)
			}
			return nil, err
		}
	}

	m.metrics.ObserveMutationOutcome("update", "exhausted")
	err = fmt.Errorf("%w: %w", ErrExhausted, lastErr)
	span.RecordError(err)
	return nil, err
}

// RequestChange asks the professional to change the appointment. It uses the
// dedicated endpoint and falls back to a notification when that route does
// not exist.
func (m *Mutator) RequestChange(ctx context.Context, id string, req ChangeRequest) error {
	id, err := requireID(id)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "appointments.request_change")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", id))

	_, err = m.api.Do(ctx, http.MethodPost, appointmentPath(id)+"/request-change", nil, req)
	m.metrics.ObserveMutationAttempt("request_change", Classify(err).String())
	switch Classify(err) {
	case Success:
		m.metrics.ObserveMutationOutcome("request_change", "success")
		return nil
	case Fatal:
		m.metrics.ObserveMutationOutcome("request_change", failureLabel(err))
		span.RecordError(err)
		return err
	}

	m.logger.Info("request-change route missing, sending notification", "appointment_id", id)
	notification := map[string]any{
		"type":             "appointment_change_request",
		"appointmentId":    id,
		"requestedChanges": req,
	}
	if _, err := m.api.Do(ctx, http.MethodPost, "/notifications", nil, notification); err != nil {
		m.metrics.ObserveMutationOutcome("request_change", "undeliverable")
		m.logger.Error("change request undeliverable", "appointment_id", id, "error", err)
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrChangeRequestUndeliverable, err)
	}
	m.metrics.ObserveMutationOutcome("request_change", "notified")
	return nil
}

// Cancel marks the appointment cancelled on the primary route only.
func (m *Mutator) Cancel(ctx context.Context, id string) error {
	id, err := requireID(id)
	if err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", id))

	_, err = m.api.Do(ctx, http.MethodPut, appointmentPath(id), nil, Fields{Status: clinic.StatusCancelled})
	m.metrics.ObserveMutationAttempt("cancel", Classify(err).String())
	if err != nil {
		m.metrics.ObserveMutationOutcome("cancel", failureLabel(err))
		span.RecordError(err)
		return err
	}
	m.metrics.ObserveMutationOutcome("cancel", "success")
	return nil
}

func decodeAppointment(id string, data []byte) (*clinic.Appointment, error) {
	record, ok := envelope.Record(data)
	if !ok {
		return &clinic.Appointment{ID: id}, nil
	}
	var appt clinic.Appointment
	if err := json.Unmarshal(record, &appt); err != nil {
		return nil, fmt.Errorf("appointments: decode updated appointment: %w", err)
	}
	if appt.ID == "" {
		appt.ID = id
	}
	return &appt, nil
}

func failureLabel(err error) string {
	if kind := backend.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrAppointmentIDRequired
	}
	return id, nil
}
