package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/wolfman30/clinic-gateway/internal/envelope"
	"github.com/wolfman30/clinic-gateway/internal/ids"
)

var (
	ErrProfessionalIDRequired = errors.New("clinic: professional id is required")
	ErrNoClinicChanges        = errors.New("clinic: no clinic fields to change")
	ErrClinicNotFound         = errors.New("clinic: clinic not found")
)

// Address is a clinic's postal address.
type Address struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
}

// Clinic is the clinic profile.
type Clinic struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	TaxID     string     `json:"cnpj,omitempty"`
	Logo      string     `json:"logo,omitempty"`
	Address   *Address   `json:"address,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func (c *Clinic) UnmarshalJSON(data []byte) error {
	var wire struct {
		MongoID   json.RawMessage `json:"_id"`
		ID        json.RawMessage `json:"id"`
		Name      json.RawMessage `json:"name"`
		Email     json.RawMessage `json:"email"`
		Phone     json.RawMessage `json:"phone"`
		TaxID     json.RawMessage `json:"cnpj"`
		Logo      json.RawMessage `json:"logo"`
		Address   json.RawMessage `json:"address"`
		CreatedAt json.RawMessage `json:"createdAt"`
		UpdatedAt json.RawMessage `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	id, _ := ids.First(wire.MongoID, wire.ID)
	*c = Clinic{
		ID:        id,
		Name:      lenientString(wire.Name),
		Email:     lenientString(wire.Email),
		Phone:     lenientString(wire.Phone),
		TaxID:     lenientString(wire.TaxID),
		Logo:      lenientString(wire.Logo),
		CreatedAt: parseTime(lenientString(wire.CreatedAt)),
		UpdatedAt: parseTime(lenientString(wire.UpdatedAt)),
	}
	if isJSONObject(wire.Address) {
		var addr Address
		if err := json.Unmarshal(wire.Address, &addr); err == nil {
			c.Address = &addr
		}
	}
	return nil
}

// ClinicUpdate carries the profile fields to change. Zero values are not sent.
type ClinicUpdate struct {
	Name    string   `json:"name,omitempty"`
	Email   string   `json:"email,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	TaxID   string   `json:"cnpj,omitempty"`
	Logo    string   `json:"logo,omitempty"`
	Address *Address `json:"address,omitempty"`
}

func (u ClinicUpdate) empty() bool {
	return u.Name == "" && u.Email == "" && u.Phone == "" && u.TaxID == "" && u.Logo == "" && u.Address == nil
}

// Clinic reads the clinic profile.
// GET /clinics/{clinicID}
func (s *Service) Clinic(ctx context.Context, clinicID string) (Clinic, error) {
	clinicID, err := requireID(clinicID, ErrClinicIDRequired)
	if err != nil {
		return Clinic{}, err
	}
	data, err := s.api.Do(ctx, http.MethodGet, clinicPath(clinicID), nil, nil)
	if err != nil {
		return Clinic{}, fmt.Errorf("clinic: fetch clinic: %w", err)
	}
	return decodeClinic(clinicID, data)
}

// UpdateClinic changes the clinic profile and returns the stored version.
// PUT /clinics/{clinicID}
func (s *Service) UpdateClinic(ctx context.Context, clinicID string, update ClinicUpdate) (Clinic, error) {
	clinicID, err := requireID(clinicID, ErrClinicIDRequired)
	if err != nil {
		return Clinic{}, err
	}
	if update.empty() {
		return Clinic{}, ErrNoClinicChanges
	}
	data, err := s.api.Do(ctx, http.MethodPut, clinicPath(clinicID), nil, update)
	if err != nil {
		return Clinic{}, fmt.Errorf("clinic: update clinic: %w", err)
	}
	updated, err := decodeClinic(clinicID, data)
	if errors.Is(err, ErrClinicNotFound) {
		// some deployments answer a bare success envelope
		return Clinic{ID: clinicID}, nil
	}
	return updated, err
}

func decodeClinic(clinicID string, data []byte) (Clinic, error) {
	record, ok := envelope.Record(data)
	if !ok {
		return Clinic{}, fmt.Errorf("%w: %s", ErrClinicNotFound, clinicID)
	}
	var c Clinic
	if err := json.Unmarshal(record, &c); err != nil {
		return Clinic{}, fmt.Errorf("clinic: decode clinic: %w", err)
	}
	if c.ID == "" {
		c.ID = clinicID
	}
	return c, nil
}

// LinkProfessional attaches a professional to the clinic roster.
// POST /clinics/{clinicID}/psychologists/{professionalID}/link
func (s *Service) LinkProfessional(ctx context.Context, clinicID, professionalID string) error {
	return s.membership(ctx, clinicID, "psychologists", professionalID, ErrProfessionalIDRequired, "link")
}

// UnlinkProfessional detaches a professional from the clinic roster.
// POST /clinics/{clinicID}/psychologists/{professionalID}/unlink
func (s *Service) UnlinkProfessional(ctx context.Context, clinicID, professionalID string) error {
	return s.membership(ctx, clinicID, "psychologists", professionalID, ErrProfessionalIDRequired, "unlink")
}

// LinkPatient attaches a patient to the clinic.
// POST /clinics/{clinicID}/patients/{patientID}/link
func (s *Service) LinkPatient(ctx context.Context, clinicID, patientID string) error {
	return s.membership(ctx, clinicID, "patients", patientID, ErrPatientIDRequired, "link")
}

// UnlinkPatient detaches a patient from the clinic.
// POST /clinics/{clinicID}/patients/{patientID}/unlink
func (s *Service) UnlinkPatient(ctx context.Context, clinicID, patientID string) error {
	return s.membership(ctx, clinicID, "patients", patientID, ErrPatientIDRequired, "unlink")
}

func (s *Service) membership(ctx context.Context, clinicID, collection, memberID string, missing error, action string) error {
	clinicID, err := requireID(clinicID, ErrClinicIDRequired)
	if err != nil {
		return err
	}
	memberID, err = requireID(memberID, missing)
	if err != nil {
		return err
	}
	path := clinicPath(clinicID, collection, url.PathEscape(memberID), action)
	if _, err := s.api.Do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("clinic: %s %s %s: %w", action, collection, memberID, err)
	}
	s.logger.Info("clinic membership changed", "clinic_id", clinicID, "collection", collection, "member_id", memberID, "action", action)
	return nil
}

// AssignPatient makes professionalID responsible for the patient.
// PUT /clinics/{clinicID}/patients/{patientID}/assign-psychologist
func (s *Service) AssignPatient(ctx context.Context, clinicID, patientID, professionalID string) error {
	clinicID, err := requireID(clinicID, ErrClinicIDRequired)
	if err != nil {
		return err
	}
	patientID, err = requireID(patientID, ErrPatientIDRequired)
	if err != nil {
		return err
	}
	professionalID, err = requireID(professionalID, ErrProfessionalIDRequired)
	if err != nil {
		return err
	}
	path := clinicPath(clinicID, "patients", url.PathEscape(patientID), "assign-psychologist")
	payload := map[string]string{"psychologistId": professionalID}
	if _, err := s.api.Do(ctx, http.MethodPut, path, nil, payload); err != nil {
		return fmt.Errorf("clinic: assign patient %s: %w", patientID, err)
	}
	s.logger.Info("patient assigned", "clinic_id", clinicID, "patient_id", patientID, "professional_id", professionalID)
	return nil
}

// ProfessionalPatients lists the patients a professional follows.
// GET /psychologists/{professionalID}/patients
func (s *Service) ProfessionalPatients(ctx context.Context, professionalID string) ([]PatientRef, error) {
	professionalID, err := requireID(professionalID, ErrProfessionalIDRequired)
	if err != nil {
		return nil, err
	}
	data, err := s.api.Do(ctx, http.MethodGet, "/psychologists/"+url.PathEscape(professionalID)+"/patients", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("clinic: fetch professional patients: %w", err)
	}
	patients, skipped := envelope.Decode[PatientRef](data, "patients")
	if skipped > 0 {
		s.logger.Warn("skipped undecodable patients", "professional_id", professionalID, "skipped", skipped)
	}
	return patients, nil
}
