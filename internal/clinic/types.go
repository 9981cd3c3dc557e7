package clinic

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/clinic-gateway/internal/ids"
)

// Status is an appointment's lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusPending, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Professional is a read-only projection of a clinic roster entry.
type Professional struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	License         string     `json:"crp,omitempty"`
	Email           string     `json:"email,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Avatar          string     `json:"avatar,omitempty"`
	Specialties     []string   `json:"specialties,omitempty"`
	PatientCount    *int       `json:"patientCount,omitempty"`
	NextAppointment *time.Time `json:"nextAppointment,omitempty"`
}

func (p *Professional) UnmarshalJSON(data []byte) error {
	var wire struct {
		MongoID         json.RawMessage `json:"_id"`
		ID              json.RawMessage `json:"id"`
		Name            json.RawMessage `json:"name"`
		License         json.RawMessage `json:"crp"`
		Email           json.RawMessage `json:"email"`
		Phone           json.RawMessage `json:"phone"`
		Avatar          json.RawMessage `json:"avatar"`
		Specialties     json.RawMessage `json:"specialties"`
		PatientCount    json.RawMessage `json:"patientCount"`
		NextAppointment json.RawMessage `json:"nextAppointment"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	id, _ := ids.First(wire.MongoID, wire.ID)
	*p = Professional{
		ID:              id,
		Name:            lenientString(wire.Name),
		License:         lenientString(wire.License),
		Email:           lenientString(wire.Email),
		Phone:           lenientString(wire.Phone),
		Avatar:          lenientString(wire.Avatar),
		Specialties:     lenientStrings(wire.Specialties),
		NextAppointment: parseTime(lenientString(wire.NextAppointment)),
	}
	if n, ok := lenientInt(wire.PatientCount); ok {
		p.PatientCount = &n
	}
	return nil
}

// ProfessionalRef is the professional summary embedded in an appointment.
type ProfessionalRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (r *ProfessionalRef) UnmarshalJSON(data []byte) error {
	var wire struct {
		MongoID json.RawMessage `json:"_id"`
		ID      json.RawMessage `json:"id"`
		Name    string          `json:"name"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	id, _ := ids.First(wire.MongoID, wire.ID)
	*r = ProfessionalRef{ID: id, Name: strings.TrimSpace(wire.Name)}
	return nil
}

// PatientRef is the minimal patient projection used for display. Values are
// cached and copied; they are never mutated after construction.
type PatientRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (r *PatientRef) UnmarshalJSON(data []byte) error {
	var wire struct {
		MongoID json.RawMessage `json:"_id"`
		ID      json.RawMessage `json:"id"`
		Name    string          `json:"name"`
		Email   string          `json:"email"`
		Phone   string          `json:"phone"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	id, _ := ids.First(wire.MongoID, wire.ID)
	*r = PatientRef{
		ID:    id,
		Name:  strings.TrimSpace(wire.Name),
		Email: wire.Email,
		Phone: wire.Phone,
	}
	return nil
}

// Appointment is a scheduled session. Patient is either embedded by the
// backend, attached by enrichment, or nil; PatientID keeps the raw (possibly
// extended-encoded) identifier until enrichment canonicalizes it.
type Appointment struct {
	ID             string           `json:"id"`
	ScheduledAt    *time.Time       `json:"date,omitempty"`
	Duration       int              `json:"duration"`
	Status         Status           `json:"status"`
	Type           string           `json:"type,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	Professional   *ProfessionalRef `json:"psychologist,omitempty"`
	ProfessionalID string           `json:"psychologistId,omitempty"`
	Patient        *PatientRef      `json:"patient,omitempty"`
	PatientID      json.RawMessage  `json:"patientId,omitempty"`
}

func (a *Appointment) UnmarshalJSON(data []byte) error {
	var wire struct {
		MongoID        json.RawMessage `json:"_id"`
		ID             json.RawMessage `json:"id"`
		Date           json.RawMessage `json:"date"`
		DateTime       json.RawMessage `json:"dateTime"`
		Duration       json.RawMessage `json:"duration"`
		Status         json.RawMessage `json:"status"`
		Type           json.RawMessage `json:"type"`
		Notes          json.RawMessage `json:"notes"`
		Professional   json.RawMessage `json:"psychologist"`
		ProfessionalID json.RawMessage `json:"psychologistId"`
		Patient        json.RawMessage `json:"patient"`
		PatientID      json.RawMessage `json:"patientId"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	id, _ := ids.First(wire.MongoID, wire.ID)
	duration, _ := lenientInt(wire.Duration)
	out := Appointment{
		ID:       id,
		Duration: duration,
		Status:   Status(lenientString(wire.Status)),
		Type:     lenientString(wire.Type),
		Notes:    lenientString(wire.Notes),
	}
	if out.ScheduledAt = parseTime(lenientString(wire.Date)); out.ScheduledAt == nil {
		out.ScheduledAt = parseTime(lenientString(wire.DateTime))
	}

	// psychologist may be an embedded object or a bare id
	if isJSONObject(wire.Professional) {
		var ref ProfessionalRef
		if err := json.Unmarshal(wire.Professional, &ref); err == nil {
			out.Professional = &ref
		}
	}
	out.ProfessionalID, _ = ids.First(wire.ProfessionalID, wire.Professional)

	if !isJSONNull(wire.PatientID) {
		out.PatientID = wire.PatientID
	}
	switch {
	case isJSONObject(wire.Patient):
		var ref PatientRef
		if err := json.Unmarshal(wire.Patient, &ref); err == nil {
			out.Patient = &ref
		}
	case len(out.PatientID) == 0 && !isJSONNull(wire.Patient):
		// a bare id in the patient slot is still the patient's identifier
		out.PatientID = wire.Patient
	}

	*a = out
	return nil
}

// HasPatientName reports whether display data is already present.
func (a Appointment) HasPatientName() bool {
	return a.Patient != nil && a.Patient.Name != ""
}

// CanonicalPatientID resolves the patient identifier from the dedicated id
// field, falling back to the embedded partial patient.
func (a Appointment) CanonicalPatientID() (string, bool) {
	if id, ok := ids.FromRaw(a.PatientID); ok {
		return id, true
	}
	if a.Patient != nil && a.Patient.ID != "" {
		return a.Patient.ID, true
	}
	return "", false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

// lenientString reads a JSON string, or the literal text of a number or
// boolean. Anything else is "".
func lenientString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var scalar any
	if err := json.Unmarshal(raw, &scalar); err != nil {
		return ""
	}
	switch scalar.(type) {
	case float64, bool:
		return strings.TrimSpace(string(raw))
	}
	return ""
}

// lenientInt reads a JSON number or a numeric string. Fractions are
// truncated. ok is false when raw holds no usable number.
func lenientInt(raw json.RawMessage) (n int, ok bool) {
	if isJSONNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, false
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// lenientStrings reads an array of scalars, dropping non-scalar items. A
// single string becomes a one-element slice.
func lenientStrings(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if s := lenientString(raw); s != "" {
			return []string{s}
		}
		return nil
	}
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := lenientString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "{")
}

func isJSONNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}
