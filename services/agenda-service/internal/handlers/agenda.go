package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/r-ledesma/medagenda/services/agenda-service/internal/booking"
	"github.com/r-ledesma/medagenda/services/agenda-service/internal/model"
	"github.com/r-ledesma/medagenda/services/agenda-service/internal/rules"
)

// Booker is the slice of the coordinator the HTTP layer needs.
type Booker interface {
	Reserve(ctx context.Context, req model.ReservationRequest) (booking.Confirmation, error)
	Cancel(ctx context.Context, appointmentID string) (booking.CancelResult, error)
	Get(ctx context.Context, appointmentID string) (model.Appointment, error)
}

type AgendaHandler struct {
	booker Booker
	logger *slog.Logger
}

func NewAgendaHandler(booker Booker, logger *slog.Logger) *AgendaHandler {
	return &AgendaHandler{booker: booker, logger: logger}
}

type reserveRequest struct {
	DoctorID  string `json:"doctor_id"`
	PatientID string `json:"patient_id"`
	Specialty string `json:"specialty"`
	StartsAt  string `json:"starts_at"`
}

type reserveResponse struct {
	AppointmentID string `json:"appointment_id"`
	DoctorID      string `json:"doctor_id"`
	PatientID     string `json:"patient_id"`
	StartsAt      string `json:"starts_at"`
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type cancelResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
}

type appointmentResponse struct {
	AppointmentID string `json:"appointment_id"`
	DoctorID      string `json:"doctor_id"`
	PatientID     string `json:"patient_id"`
	StartsAt      string `json:"starts_at"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func (h *AgendaHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.PatientID = strings.TrimSpace(req.PatientID)
	if req.PatientID == "" {
		http.Error(w, "patient_id is required", http.StatusBadRequest)
		return
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		http.Error(w, "invalid starts_at", http.StatusBadRequest)
		return
	}

	var specialty model.Specialty
	if s := strings.TrimSpace(req.Specialty); s != "" {
		specialty, err = model.ParseSpecialty(s)
		if err != nil {
			http.Error(w, "unknown specialty", http.StatusBadRequest)
			return
		}
	}

	conf, err := h.booker.Reserve(r.Context(), model.ReservationRequest{
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		Specialty: specialty,
		StartsAt:  startsAt.UTC(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, reserveResponse{
		AppointmentID: conf.AppointmentID,
		DoctorID:      conf.DoctorID,
		PatientID:     conf.PatientID,
		StartsAt:      conf.StartsAt.UTC().Format(time.RFC3339),
	})
}

func (h *AgendaHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}

	res, err := h.booker.Cancel(r.Context(), req.AppointmentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := cancelResponse{AppointmentID: res.AppointmentID, Status: string(res.Status)}
	if !res.CancelledAt.IsZero() {
		resp.CancelledAt = res.CancelledAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AgendaHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	appt, err := h.booker.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := appointmentResponse{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		PatientID:     appt.PatientID,
		StartsAt:      appt.StartsAt.UTC().Format(time.RFC3339),
		Status:        string(appt.Status),
		CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
	}
	if appt.CancelledAt != nil {
		resp.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeError maps coordinator failures onto status codes. Rule violations
// carry their reason to the client; anything unexpected stays generic.
func (h *AgendaHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var violation *rules.Violation
	if errors.As(err, &violation) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": violation.Reason})
		return
	}
	var notFound *booking.NotFoundError
	if errors.As(err, &notFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound.Error()})
		return
	}
	h.logger.Error("request failed", "path", r.URL.Path, "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
