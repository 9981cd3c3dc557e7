package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/wolfman30/clinic-gateway/internal/backend"
	"github.com/wolfman30/clinic-gateway/internal/envelope"
)

// PatientFetcher performs uncached single-patient reads.
type PatientFetcher struct {
	api backend.Requester
}

// NewPatientFetcher builds a fetcher over api.
func NewPatientFetcher(api backend.Requester) *PatientFetcher {
	return &PatientFetcher{api: api}
}

// FetchPatient reads one patient record.
// GET /patients/{patientID}
func (f *PatientFetcher) FetchPatient(ctx context.Context, patientID string) (PatientRef, error) {
	patientID, err := requireID(patientID, ErrPatientIDRequired)
	if err != nil {
		return PatientRef{}, err
	}

	data, err := f.api.Do(ctx, http.MethodGet, "/patients/"+url.PathEscape(patientID), nil, nil)
	if err != nil {
		return PatientRef{}, fmt.Errorf("clinic: fetch patient %s: %w", patientID, err)
	}

	record, ok := envelope.Record(data)
	if !ok {
		return PatientRef{}, fmt.Errorf("%w: %s", ErrPatientNotFound, patientID)
	}
	var ref PatientRef
	if err := json.Unmarshal(record, &ref); err != nil {
		return PatientRef{}, fmt.Errorf("clinic: decode patient %s: %w", patientID, err)
	}
	if ref.ID == "" {
		ref.ID = patientID
	}
	return ref, nil
}

// Patient resolves a patient through the lookup cache. A backend 404 on
// the patient route is reported as ErrPatientNotFound.
func (s *Service) Patient(ctx context.Context, patientID string) (PatientRef, error) {
	patientID, err := requireID(patientID, ErrPatientIDRequired)
	if err != nil {
		return PatientRef{}, err
	}
	ref, err := s.patients.Get(ctx, patientID)
	if err == nil {
		return ref, nil
	}
	switch backend.KindOf(err) {
	case backend.KindRoutingMismatch, backend.KindNotFound:
		return PatientRef{}, fmt.Errorf("%w: %s", ErrPatientNotFound, patientID)
	}
	return PatientRef{}, err
}
