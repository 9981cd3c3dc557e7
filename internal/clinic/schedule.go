package clinic

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-gateway/internal/backend"
	"github.com/wolfman30/clinic-gateway/internal/envelope"
)

const scheduleOperation = "schedule"

// appointment routes in preference order. Deployments expose one or the other.
var scheduleRoutes = []func(professionalID string) string{
	func(id string) string { return "/psychologists/" + url.PathEscape(id) + "/appointments" },
	func(id string) string { return "/appointments/psychologist/" + url.PathEscape(id) },
}

// Schedule aggregates every professional's appointments into one clinic-wide
// list in roster order. A professional whose schedule cannot be read
// contributes nothing; only a roster failure is returned.
func (s *Service) Schedule(ctx context.Context, clinicID string, date *time.Time) ([]Appointment, error) {
	ctx, span := tracer.Start(ctx, "clinic.schedule")
	defer span.End()

	roster, err := s.Roster(ctx, clinicID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("clinic.id", clinicID),
		attribute.Int("clinic.professionals", len(roster)),
	)
	if len(roster) == 0 {
		return []Appointment{}, nil
	}

	var query url.Values
	if date != nil {
		query = url.Values{"date": {date.Format("2006-01-02")}}
	}

	started := time.Now()
	results := settleAll(ctx, len(roster), func(ctx context.Context, i int) ([]Appointment, error) {
		return s.professionalSchedule(ctx, roster[i].ID, query)
	})
	s.metrics.ObserveFanoutDuration(scheduleOperation, time.Since(started).Seconds())

	out := make([]Appointment, 0, len(roster))
	for i, res := range results {
		if res.err != nil {
			s.metrics.ObserveFanoutBranch(scheduleOperation, "error")
			s.logger.Warn("professional schedule unavailable",
				"clinic_id", clinicID,
				"professional_id", roster[i].ID,
				"error", res.err,
			)
			continue
		}
		s.metrics.ObserveFanoutBranch(scheduleOperation, "ok")
		out = append(out, res.value...)
	}
	span.SetAttributes(attribute.Int("clinic.appointments", len(out)))
	return out, nil
}

// ScheduleWithPatients is Schedule followed by Enrich.
func (s *Service) ScheduleWithPatients(ctx context.Context, clinicID string, date *time.Time) ([]Appointment, error) {
	appts, err := s.Schedule(ctx, clinicID, date)
	if err != nil {
		return nil, err
	}
	return s.Enrich(ctx, appts), nil
}

// professionalSchedule walks scheduleRoutes until one exists. Running out of
// routes is an empty schedule, not an error.
func (s *Service) professionalSchedule(ctx context.Context, professionalID string, query url.Values) ([]Appointment, error) {
	if professionalID == "" {
		return nil, fmt.Errorf("clinic: roster entry without id")
	}
	for _, route := range scheduleRoutes {
		path := route(professionalID)
		data, err := s.api.Do(ctx, http.MethodGet, path, query, nil)
		if backend.IsRoutingMismatch(err) {
			s.logger.Debug("schedule route missing", "path", path)
			continue
		}
		if err != nil {
			return nil, err
		}
		appts, skipped := envelope.Decode[Appointment](data, "appointments")
		if skipped > 0 {
			s.logger.Warn("skipped undecodable appointments", "professional_id", professionalID, "skipped", skipped)
		}
		return appts, nil
	}
	return nil, nil
}
