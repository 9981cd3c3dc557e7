package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-gateway/internal/http/respond"
	"github.com/wolfman30/clinic-gateway/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Handler exposes the clinic read model over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
	now     func() time.Time
}

// NewHandler creates a clinic HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger.Component("clinic_handler"),
		now:     time.Now,
	}
}

// Register mounts the clinic routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/clinics/{clinicID}", func(r chi.Router) {
		r.Get("/", h.GetClinic)
		r.Put("/", h.UpdateClinic)
		r.Get("/professionals", h.GetProfessionals)
		r.Post("/professionals/{professionalID}/link", h.LinkProfessional)
		r.Post("/professionals/{professionalID}/unlink", h.UnlinkProfessional)
		r.Get("/schedule", h.GetSchedule)
		r.Get("/stats", h.GetStats)
		r.Get("/stats/new-patients", h.GetNewPatients)
		r.Get("/patients", h.GetPatients)
		r.Post("/patients/{patientID}/link", h.LinkPatient)
		r.Post("/patients/{patientID}/unlink", h.UnlinkPatient)
		r.Put("/patients/{patientID}/professional", h.AssignPatient)
	})
	r.Get("/patients/{patientID}", h.GetPatient)
	r.Get("/professionals/{professionalID}/patients", h.GetProfessionalPatients)
}

// GetClinic returns the clinic profile.
// GET /clinics/{clinicID}
func (h *Handler) GetClinic(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	c, err := h.service.Clinic(r.Context(), clinicID)
	if err != nil {
		h.fail(w, "failed to fetch clinic", clinicID, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"clinic": c})
}

// UpdateClinic changes the clinic profile.
// PUT /clinics/{clinicID}
func (h *Handler) UpdateClinic(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	var update ClinicUpdate
	if !decodeBody(w, r, &update) {
		return
	}
	c, err := h.service.UpdateClinic(r.Context(), clinicID, update)
	if err != nil {
		h.fail(w, "failed to update clinic", clinicID, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"clinic": c})
}

// LinkProfessional adds a professional to the roster.
// POST /clinics/{clinicID}/professionals/{professionalID}/link
func (h *Handler) LinkProfessional(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.service.LinkProfessional, "professionalID", "linked")
}

// UnlinkProfessional removes a professional from the roster.
// POST /clinics/{clinicID}/professionals/{professionalID}/unlink
func (h *Handler) UnlinkProfessional(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.service.UnlinkProfessional, "professionalID", "unlinked")
}

// LinkPatient adds a patient to the clinic.
// POST /clinics/{clinicID}/patients/{patientID}/link
func (h *Handler) LinkPatient(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.service.LinkPatient, "patientID", "linked")
}

// UnlinkPatient removes a patient from the clinic.
// POST /clinics/{clinicID}/patients/{patientID}/unlink
func (h *Handler) UnlinkPatient(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.service.UnlinkPatient, "patientID", "unlinked")
}

func (h *Handler) membership(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, clinicID, memberID string) error, param, status string) {
	clinicID := chi.URLParam(r, "clinicID")
	if err := op(r.Context(), clinicID, chi.URLParam(r, param)); err != nil {
		h.fail(w, "clinic membership change failed", clinicID, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": status})
}

// AssignPatient hands the patient to another professional of the clinic.
// PUT /clinics/{clinicID}/patients/{patientID}/professional
func (h *Handler) AssignPatient(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	var body struct {
		ProfessionalID string `json:"psychologistId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.service.AssignPatient(r.Context(), clinicID, chi.URLParam(r, "patientID"), body.ProfessionalID); err != nil {
		h.fail(w, "patient assignment failed", clinicID, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

// GetProfessionalPatients lists a professional's patients.
// GET /professionals/{professionalID}/patients
func (h *Handler) GetProfessionalPatients(w http.ResponseWriter, r *http.Request) {
	professionalID := chi.URLParam(r, "professionalID")
	patients, err := h.service.ProfessionalPatients(r.Context(), professionalID)
	if err != nil {
		h.fail(w, "failed to fetch professional patients", "", err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"patients": patients})
}

// GetProfessionals returns the clinic roster.
// GET /clinics/{clinicID}/professionals
func (h *Handler) GetProfessionals(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	roster, err := h.service.Roster(r.Context(), clinicID)
	if err != nil {
		h.fail(w, "failed to fetch roster", clinicID, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"professionals": roster})
}

// GetSchedule returns the aggregated clinic schedule, enriched with patient
// names unless enrich=false.
// GET /clinics/{clinicID}/schedule?date=YYYY-MM-DD&enrich=true
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")

	var date *time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = &parsed
	}
	enrich := true
	if raw := r.URL.Query().Get("enrich"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "enrich must be a boolean")
			return
		}
		enrich = parsed
	}

	load := h.service.ScheduleWithPatients
	if !enrich {
		load = h.service.Schedule
	}
	appts, err := load(r.Context(), clinicID, date)
	if err != nil {
		h.fail(w, "failed to build schedule", clinicID, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

// GetStats returns the clinic dashboard summary.
// GET /clinics/{clinicID}/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	stats, err := h.service.Stats(r.Context(), clinicID)
	if err != nil {
		h.fail(w, "failed to fetch stats", clinicID, err)
		return
	}
	respond.JSON(w, http.StatusOK, stats)
}

// GetNewPatients returns the count of patients registered this month.
// GET /clinics/{clinicID}/stats/new-patients
func (h *Handler) GetNewPatients(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	count := h.service.NewPatientsThisMonth(r.Context(), clinicID, h.now())
	respond.JSON(w, http.StatusOK, map[string]int{"newPatientsThisMonth": count})
}

// GetPatients returns one page of the patient directory.
// GET /clinics/{clinicID}/patients?search=&page=&limit=&psychologistId=
func (h *Handler) GetPatients(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	q := r.URL.Query()
	query := PatientQuery{
		ProfessionalID: strings.TrimSpace(q.Get("psychologistId")),
		Search:         strings.TrimSpace(q.Get("search")),
	}
	for name, dst := range map[string]*int{"page": &query.Page, "limit": &query.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respond.Error(w, http.StatusBadRequest, name+" must be a positive integer")
			return
		}
		*dst = n
	}

	page, err := h.service.Patients(r.Context(), clinicID, query)
	if err != nil {
		h.fail(w, "failed to fetch patients", clinicID, err)
		return
	}
	respond.JSON(w, http.StatusOK, page)
}

// GetPatient resolves a patient through the lookup cache.
// GET /patients/{patientID}
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	ref, err := h.service.Patient(r.Context(), patientID)
	switch {
	case err == nil:
		respond.JSON(w, http.StatusOK, ref)
	case errors.Is(err, ErrPatientIDRequired):
		respond.Error(w, http.StatusBadRequest, "patient id required")
	case errors.Is(err, ErrPatientNotFound):
		respond.Error(w, http.StatusNotFound, "patient not found")
	default:
		status := respond.BackendError(w, err)
		h.logger.Warn("patient lookup failed", "patient_id", patientID, "status", status, "error", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, msg, clinicID string, err error) {
	switch {
	case errors.Is(err, ErrClinicIDRequired),
		errors.Is(err, ErrProfessionalIDRequired),
		errors.Is(err, ErrPatientIDRequired),
		errors.Is(err, ErrNoClinicChanges):
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrClinicNotFound):
		respond.Error(w, http.StatusNotFound, "clinic not found")
		return
	}
	status := respond.BackendError(w, err)
	h.logger.Error(msg, "clinic_id", clinicID, "status", status, "error", err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
