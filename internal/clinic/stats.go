package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wolfman30/clinic-gateway/internal/backend"
	"github.com/wolfman30/clinic-gateway/internal/envelope"
)

// Stats is the clinic dashboard summary.
type Stats struct {
	TotalProfessionals   int     `json:"totalPsychologists"`
	TotalPatients        int     `json:"totalPatients"`
	AppointmentsToday    int     `json:"appointmentsToday"`
	OccupancyRate        float64 `json:"occupancyRate"`
	NewPatientsThisMonth *int    `json:"newPatientsThisMonth,omitempty"`
}

// PatientQuery filters the clinic patient directory. Zero values are omitted.
type PatientQuery struct {
	ProfessionalID string
	Search         string
	Page           int
	Limit          int
}

func (q PatientQuery) values() url.Values {
	v := url.Values{}
	if q.ProfessionalID != "" {
		v.Set("psychologistId", q.ProfessionalID)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// PatientPage is one page of the clinic patient directory.
type PatientPage struct {
	Patients []PatientRef `json:"patients"`
	Total    int          `json:"total"`
	Pages    int          `json:"pages"`
}

type pagination struct {
	Total *int `json:"total"`
	Pages int  `json:"pages"`
}

// Stats reads the clinic dashboard summary.
// GET /clinics/{clinicID}/stats
func (s *Service) Stats(ctx context.Context, clinicID string) (Stats, error) {
	clinicID, err := requireID(clinicID, ErrClinicIDRequired)
	if err != nil {
		return Stats{}, err
	}
	data, err := s.api.Do(ctx, http.MethodGet, clinicPath(clinicID, "stats"), nil, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("clinic: fetch stats: %w", err)
	}

	var stats Stats
	record, ok := envelope.Record(data)
	if !ok {
		// stats carry no id, so a bare object is the record itself
		record = data
	}
	if err := json.Unmarshal(record, &stats); err != nil {
		return Stats{}, fmt.Errorf("clinic: decode stats: %w", err)
	}
	return stats, nil
}

// Patients reads one page of the clinic patient directory.
// GET /clinics/{clinicID}/patients
func (s *Service) Patients(ctx context.Context, clinicID string, q PatientQuery) (PatientPage, error) {
	clinicID, err := requireID(clinicID, ErrClinicIDRequired)
	if err != nil {
		return PatientPage{}, err
	}
	data, err := s.api.Do(ctx, http.MethodGet, clinicPath(clinicID, "patients"), q.values(), nil)
	if err != nil {
		return PatientPage{}, fmt.Errorf("clinic: fetch patients: %w", err)
	}

	page := PatientPage{Patients: []PatientRef{}}
	if raw := envelope.Field(data, "data", "patients"); raw != nil {
		if err := json.Unmarshal(raw, &page.Patients); err != nil {
			s.logger.Warn("undecodable patient page", "clinic_id", clinicID, "error", err)
			page.Patients = []PatientRef{}
		}
	}
	if p, ok := decodePagination(envelope.Field(data, "data", "pagination")); ok {
		if p.Total != nil {
			page.Total = *p.Total
		}
		page.Pages = p.Pages
	}
	return page, nil
}

// NewPatientsThisMonth counts patients registered since the first day of
// now's month. It prefers the monthly stats endpoint and falls back to a
// filtered patient listing when that endpoint does not exist. Any other
// failure yields 0.
func (s *Service) NewPatientsThisMonth(ctx context.Context, clinicID string, now time.Time) int {
	clinicID, err := requireID(clinicID, ErrClinicIDRequired)
	if err != nil {
		return 0
	}

	data, err := s.api.Do(ctx, http.MethodGet, clinicPath(clinicID, "stats", "monthly"), nil, nil)
	if err == nil {
		for _, raw := range []json.RawMessage{
			envelope.Field(data, "data", "newPatientsThisMonth"),
			envelope.Field(data, "newPatientsThisMonth"),
		} {
			var n int
			if raw != nil && json.Unmarshal(raw, &n) == nil {
				return n
			}
		}
		return 0
	}
	if !backend.IsRoutingMismatch(err) {
		s.logger.Warn("monthly stats unavailable", "clinic_id", clinicID, "error", err)
		return 0
	}

	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	query := url.Values{"createdAfter": {startOfMonth.Format("2006-01-02")}}
	data, err = s.api.Do(ctx, http.MethodGet, clinicPath(clinicID, "patients"), query, nil)
	if err != nil {
		s.logger.Warn("new patient count unavailable", "clinic_id", clinicID, "error", err)
		return 0
	}
	if p, ok := decodePagination(envelope.Field(data, "data", "pagination")); ok && p.Total != nil {
		return *p.Total
	}
	if raw := envelope.Field(data, "data", "patients"); raw != nil {
		var patients []json.RawMessage
		if json.Unmarshal(raw, &patients) == nil {
			return len(patients)
		}
	}
	return 0
}

func decodePagination(raw json.RawMessage) (pagination, bool) {
	if raw == nil {
		return pagination{}, false
	}
	var p pagination
	if err := json.Unmarshal(raw, &p); err != nil {
		return pagination{}, false
	}
	return p, true
}
