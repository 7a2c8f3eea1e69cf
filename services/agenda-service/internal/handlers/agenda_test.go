package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/r-ledesma/medagenda/services/agenda-service/internal/booking"
	"github.com/r-ledesma/medagenda/services/agenda-service/internal/model"
	"github.com/r-ledesma/medagenda/services/agenda-service/internal/rules"
)

type fakeBooker struct {
	reserveErr error
	cancelErr  error
	getErr     error

	lastRequest model.ReservationRequest
}

func (f *fakeBooker) Reserve(_ context.Context, req model.ReservationRequest) (booking.Confirmation, error) {
	f.lastRequest = req
	if f.reserveErr != nil {
		return booking.Confirmation{}, f.reserveErr
	}
	return booking.Confirmation{
		AppointmentID: "a1",
		DoctorID:      "d1",
		PatientID:     req.PatientID,
		StartsAt:      req.StartsAt,
	}, nil
}

func (f *fakeBooker) Cancel(_ context.Context, id string) (booking.CancelResult, error) {
	if f.cancelErr != nil {
		return booking.CancelResult{}, f.cancelErr
	}
	return booking.CancelResult{
		AppointmentID: id,
		Status:        model.AppointmentCancelled,
		CancelledAt:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeBooker) Get(_ context.Context, id string) (model.Appointment, error) {
	if f.getErr != nil {
		return model.Appointment{}, f.getErr
	}
	return model.Appointment{
		ID:        id,
		DoctorID:  "d1",
		PatientID: "p1",
		StartsAt:  time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Status:    model.AppointmentScheduled,
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}, nil
}

func newTestHandler(b *fakeBooker) *AgendaHandler {
	return NewAgendaHandler(b, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestReserveHandler(t *testing.T) {
	b := &fakeBooker{}
	h := newTestHandler(b)

	body := `{"patient_id":"p1","specialty":"Cardiology","starts_at":"2026-03-02T10:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Reserve(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["appointment_id"] != "a1" || resp["doctor_id"] != "d1" {
		t.Fatalf("unexpected response: %v", resp)
	}
	if b.lastRequest.Specialty != model.Cardiology {
		t.Fatalf("specialty = %q, want normalized cardiology", b.lastRequest.Specialty)
	}
}

func TestReserveHandlerBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing patient", `{"starts_at":"2026-03-02T10:00:00Z"}`},
		{"bad timestamp", `{"patient_id":"p1","starts_at":"tomorrow"}`},
		{"unknown specialty", `{"patient_id":"p1","specialty":"astrology","starts_at":"2026-03-02T10:00:00Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&fakeBooker{})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Reserve(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestReserveHandlerViolation(t *testing.T) {
	b := &fakeBooker{reserveErr: &rules.Violation{Reason: "doctor already has an appointment at that time"}}
	h := newTestHandler(b)

	body := `{"patient_id":"p1","doctor_id":"d1","starts_at":"2026-03-02T10:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Reserve(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "doctor already has an appointment at that time" {
		t.Fatalf("error = %q", resp["error"])
	}
}

func TestReserveHandlerNotFound(t *testing.T) {
	b := &fakeBooker{reserveErr: &booking.NotFoundError{Resource: "patient", ID: "ghost"}}
	h := newTestHandler(b)

	body := `{"patient_id":"ghost","doctor_id":"d1","starts_at":"2026-03-02T10:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Reserve(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestReserveHandlerInternalErrorIsOpaque(t *testing.T) {
	b := &fakeBooker{reserveErr: errors.New("pq: connection refused at 10.0.0.3")}
	h := newTestHandler(b)

	body := `{"patient_id":"p1","doctor_id":"d1","starts_at":"2026-03-02T10:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Reserve(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.3") {
		t.Fatal("internal detail leaked to client")
	}
}

func TestCancelHandler(t *testing.T) {
	h := newTestHandler(&fakeBooker{})

	body := `{"appointment_id":"a1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "cancelled" || resp["cancelled_at"] == "" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestCancelHandlerNotFound(t *testing.T) {
	b := &fakeBooker{cancelErr: &booking.NotFoundError{Resource: "appointment", ID: "missing"}}
	h := newTestHandler(b)

	body := `{"appointment_id":"missing"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetHandler(t *testing.T) {
	h := newTestHandler(&fakeBooker{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments?id=a1", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["appointment_id"] != "a1" || resp["status"] != "scheduled" {
		t.Fatalf("unexpected response: %v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	rec = httptest.NewRecorder()
	h.Get(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without id", rec.Code)
	}
}
