package appointments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-gateway/internal/http/respond"
	"github.com/wolfman30/clinic-gateway/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Handler exposes appointment writes over HTTP.
type Handler struct {
	mutator *Mutator
	logger  *logging.Logger
}

func NewHandler(mutator *Mutator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{mutator: mutator, logger: logger.Component("appointments_handler")}
}

// Register mounts the appointment routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/appointments/{appointmentID}", func(r chi.Router) {
		r.Patch("/", h.Update)
		r.Post("/change-requests", h.RequestChange)
		r.Post("/cancel", h.Cancel)
	})
}

// Update applies a partial update.
// PATCH /appointments/{appointmentID}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "appointmentID")
	var fields Fields
	if !decodeBody(w, r, &fields) {
		return
	}

	appt, err := h.mutator.Update(r.Context(), id, fields)
	if err != nil {
		h.fail(w, "appointment update failed", id, err)
		return
	}
	h.logger.Info("appointment updated", "appointment_id", id)
	respond.JSON(w, http.StatusOK, map[string]any{"appointment": appt})
}

// RequestChange escalates a change the caller may not apply directly.
// POST /appointments/{appointmentID}/change-requests
func (h *Handler) RequestChange(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "appointmentID")
	var req ChangeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.mutator.RequestChange(r.Context(), id, req); err != nil {
		h.fail(w, "appointment change request failed", id, err)
		return
	}
	h.logger.Info("appointment change requested", "appointment_id", id)
	respond.JSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
}

// Cancel cancels the appointment.
// POST /appointments/{appointmentID}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "appointmentID")
	if err := h.mutator.Cancel(r.Context(), id); err != nil {
		h.fail(w, "appointment cancel failed", id, err)
		return
	}
	h.logger.Info("appointment cancelled", "appointment_id", id)
	respond.JSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, msg, id string, err error) {
	var status int
	switch {
	case errors.Is(err, ErrAppointmentIDRequired),
		errors.Is(err, ErrNoChanges),
		errors.Is(err, ErrInvalidFields),
		errors.Is(err, ErrReasonRequired):
		status = http.StatusBadRequest
		respond.Error(w, status, err.Error())
	case errors.Is(err, ErrExhausted):
		status = http.StatusNotImplemented
		respond.Error(w, status, "appointment updates are not supported by this backend")
	case errors.Is(err, ErrChangeRequestUndeliverable):
		status = http.StatusBadGateway
		respond.Error(w, status, ErrChangeRequestUndeliverable.Error())
	default:
		status = respond.BackendError(w, err)
	}
	h.logger.Warn(msg, "appointment_id", id, "status", status, "error", err)
}
