package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/r-ledesma/medagenda/services/agenda-service/internal/model"
)

type fakeGateway struct {
	doctorActive  bool
	patientActive bool
	doctorBooked  bool
	patientBooked bool

	doctorErr error

	patientFrom time.Time
	patientTo   time.Time
}

func (f *fakeGateway) DoctorActive(context.Context, string) (bool, error) {
	return f.doctorActive, f.doctorErr
}

func (f *fakeGateway) PatientActive(context.Context, string) (bool, error) {
	return f.patientActive, nil
}

func (f *fakeGateway) DoctorBookedAt(context.Context, string, time.Time) (bool, error) {
	return f.doctorBooked, nil
}

func (f *fakeGateway) PatientBookedBetween(_ context.Context, _ string, from, to time.Time) (bool, error) {
	f.patientFrom = from
	f.patientTo = to
	return f.patientBooked, nil
}

func openGateway() *fakeGateway {
	return &fakeGateway{doctorActive: true, patientActive: true}
}

// Monday 2026-03-02.
func monday(hour int) time.Time {
	return time.Date(2026, 3, 2, hour, 0, 0, 0, time.UTC)
}

func TestEvaluate(t *testing.T) {
	now := monday(8)
	set := Default(model.DefaultOfficeHours(), 30*time.Minute)

	tests := []struct {
		name       string
		req        model.ReservationRequest
		gateway    *fakeGateway
		wantReason string
	}{
		{
			name:    "valid request passes",
			req:     model.ReservationRequest{DoctorID: "d1", PatientID: "p1", StartsAt: monday(10)},
			gateway: openGateway(),
		},
		{
			name:       "sunday is closed",
			req:        model.ReservationRequest{DoctorID: "d1", PatientID: "p1", StartsAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
			gateway:    openGateway(),
			wantReason: "requested time is outside office hours",
		},
		{
			name:       "before opening",
			req:        model.ReservationRequest{DoctorID: "d1", PatientID: "p1", StartsAt: monday(6)},
			gateway:    openGateway(),
			wantReason: "requested time is outside office hours",
		},
		{
			name:    "first slot of the day",
			req:     model.ReservationRequest{DoctorID: "d1", PatientID: "p1", StartsAt: monday(7)},
			gateway: openGateway(),
		},
		{
			name:    "last slot ends at closing",
			req:     model.ReservationRequest{DoctorID: "d1", PatientID: "p1", StartsAt: monday(18)},
			gateway: openGateway(),
		},
		{
			name:       "start at closing hour",
			req:        model.ReservationRequest{DoctorID: "d1", PatientID: "p1", StartsAt: monday(19)},
			gateway:    openGateway(),
			wantReason: "requested time is outside office hours",
		},
		{
			name:       "29 minutes ahead is too soon",
			req:        model.ReservationRequest{DoctorID: "d1", PatientID: "p1", StartsAt: now.Add(29 * time.Minute)},
			gateway:    openGateway(),
			wantReason: "appointments must be booked at least 30 minutes in advance",
		},
		{
			name:    "exactly 30 minutes ahead",
			req:     model.ReservationRequest{DoctorID: "d1", PatientID: "p1", StartsAt: now.Add(30 * time.Minute)},
			gateway: openGateway(),
		},
		{
			name:       "inactive doctor",
			req:        model.ReservationRequest{DoctorID: "d1", PatientID: "p1", StartsAt: monday(10)},
			gateway:    &fakeGateway{patientActive: true},
			wantReason: "doctor is not active",
		},
		{
			name:    "doctor check skipped when unset",
			req:     model.ReservationRequest{PatientID: "p1", Specialty: model.Cardiology, StartsAt: monday(10)},
			gateway: &fakeGateway{patientActive: true},
		},
		{
			name:       "inactive patient",
			req:        model.ReservationRequest{DoctorID: "d1", PatientID: "p1", StartsAt: monday(10)},
			gateway:    &fakeGateway{doctorActive: true},
			wantReason: "patient is not active",
		},
		{
			name:       "doctor slot taken",
			req:        model.ReservationRequest{DoctorID: "d1", PatientID: "p1", StartsAt: monday(10)},
			gateway:    &fakeGateway{doctorActive: true, patientActive: true, doctorBooked: true},
			wantReason: "doctor already has an appointment at that time",
		},
		{
			name:       "patient already booked that day",
			req:        model.ReservationRequest{DoctorID: "d1", PatientID: "p1", StartsAt: monday(10)},
			gateway:    &fakeGateway{doctorActive: true, patientActive: true, patientBooked: true},
			wantReason: "patient already has an appointment that day",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Evaluate(context.Background(), tt.gateway, set, tt.req, now)
			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("expected pass, got %v", err)
				}
				return
			}
			var violation *Violation
			if !errors.As(err, &violation) {
				t.Fatalf("expected violation, got %v", err)
			}
			if violation.Reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q", violation.Reason, tt.wantReason)
			}
		})
	}
}

func TestEvaluateStopsAtFirstViolation(t *testing.T) {
	// Inactive doctor and an occupied patient day at the same time; only the
	// earlier rule's reason may surface.
	g := &fakeGateway{patientActive: true, patientBooked: true}
	set := Default(model.DefaultOfficeHours(), 30*time.Minute)
	req := model.ReservationRequest{DoctorID: "d1", PatientID: "p1", StartsAt: monday(10)}

	err := Evaluate(context.Background(), g, set, req, monday(8))
	var violation *Violation
	if !errors.As(err, &violation) {
		t.Fatalf("expected violation, got %v", err)
	}
	if violation.Reason != "doctor is not active" {
		t.Fatalf("reason = %q, want the doctor-active reason", violation.Reason)
	}
}

func TestEvaluatePatientDayUsesOfficeWindow(t *testing.T) {
	g := openGateway()
	set := Default(model.DefaultOfficeHours(), 30*time.Minute)
	req := model.ReservationRequest{DoctorID: "d1", PatientID: "p1", StartsAt: monday(10)}

	if err := Evaluate(context.Background(), g, set, req, monday(8)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := g.patientFrom, monday(7); !got.Equal(want) {
		t.Fatalf("window start = %v, want %v", got, want)
	}
	if got, want := g.patientTo, monday(19); !got.Equal(want) {
		t.Fatalf("window end = %v, want %v", got, want)
	}
}

func TestEvaluatePropagatesGatewayError(t *testing.T) {
	g := openGateway()
	g.doctorErr = errors.New("connection reset")
	set := Default(model.DefaultOfficeHours(), 30*time.Minute)
	req := model.ReservationRequest{DoctorID: "d1", PatientID: "p1", StartsAt: monday(10)}

	err := Evaluate(context.Background(), g, set, req, monday(8))
	if err == nil {
		t.Fatal("expected error")
	}
	var violation *Violation
	if errors.As(err, &violation) {
		t.Fatalf("infrastructure error surfaced as violation: %v", err)
	}
}
