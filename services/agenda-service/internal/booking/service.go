// Package booking runs the reservation pipeline: existence checks, the rule
// set, doctor selection and the appointment write, all inside one storage
// transaction so a failure at any stage leaves nothing behind.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/r-ledesma/medagenda/services/agenda-service/internal/model"
	"github.com/r-ledesma/medagenda/services/agenda-service/internal/outbox"
	"github.com/r-ledesma/medagenda/services/agenda-service/internal/rules"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Gateway is the full storage contract the coordinator consumes. Every call
// made through it runs inside the transaction opened by Store.InTx.
type Gateway interface {
	rules.Gateway

	PatientExists(ctx context.Context, patientID string) (bool, error)
	DoctorExists(ctx context.Context, doctorID string) (bool, error)

	// FindAvailableDoctor returns an active doctor of the given specialty
	// with no scheduled appointment at the timestamp. Among multiple
	// candidates implementations must pick the lowest doctor id, so
	// selection is deterministic and reproducible.
	FindAvailableDoctor(ctx context.Context, specialty model.Specialty, at time.Time) (string, bool, error)

	CreateAppointment(ctx context.Context, doctorID, patientID string, at time.Time) (model.Appointment, error)
	GetAppointment(ctx context.Context, appointmentID string) (model.Appointment, error)
	CancelAppointment(ctx context.Context, appointmentID string) (time.Time, error)

	EnqueueEvent(ctx context.Context, evt outbox.Event) error
}

// Store opens one transaction around fn. If fn returns an error the
// transaction is rolled back and nothing fn did is visible to anyone.
type Store interface {
	InTx(ctx context.Context, fn func(Gateway) error) error
}

type Confirmation struct {
	AppointmentID string
	DoctorID      string
	PatientID     string
	StartsAt      time.Time
}

type CancelResult struct {
	AppointmentID string
	Status        model.AppointmentStatus
	CancelledAt   time.Time
}

type Service struct {
	store  Store
	rules  []rules.Rule
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewService(store Store, set []rules.Rule, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		rules:  set,
		logger: logger,
		tracer: otel.Tracer("agenda"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Reserve books one appointment or fails with no trace. Existence of the
// referenced parties is reported as NotFoundError before any rule runs;
// business-constraint failures come back as *rules.Violation.
func (s *Service) Reserve(ctx context.Context, req model.ReservationRequest) (Confirmation, error) {
	ctx, span := s.tracer.Start(ctx, "agenda.reserve",
		trace.WithAttributes(attribute.String("patient_id", req.PatientID)),
	)
	defer span.End()

	var conf Confirmation
	err := s.store.InTx(ctx, func(g Gateway) error {
		exists, err := g.PatientExists(ctx, req.PatientID)
		if err != nil {
			return fmt.Errorf("lookup patient: %w", err)
		}
		if !exists {
			return &NotFoundError{Resource: "patient", ID: req.PatientID}
		}
		if req.DoctorID != "" {
			exists, err := g.DoctorExists(ctx, req.DoctorID)
			if err != nil {
				return fmt.Errorf("lookup doctor: %w", err)
			}
			if !exists {
				return &NotFoundError{Resource: "doctor", ID: req.DoctorID}
			}
		}

		if err := rules.Evaluate(ctx, g, s.rules, req, s.now()); err != nil {
			return err
		}

		doctorID, err := s.resolveDoctor(ctx, g, req)
		if err != nil {
			return err
		}

		appt, err := g.CreateAppointment(ctx, doctorID, req.PatientID, req.StartsAt)
		if err != nil {
			// A concurrent reservation can win the slot between the rule
			// checks and the insert; the constraint rejection maps to the
			// same violation the rule would have produced.
			if errors.Is(err, ErrDoctorSlotTaken) {
				return &rules.Violation{Reason: "doctor already has an appointment at that time"}
			}
			if errors.Is(err, ErrPatientDayTaken) {
				return &rules.Violation{Reason: "patient already has an appointment that day"}
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		if err := s.enqueueScheduled(ctx, g, appt); err != nil {
			return fmt.Errorf("enqueue scheduled event: %w", err)
		}

		conf = Confirmation{
			AppointmentID: appt.ID,
			DoctorID:      appt.DoctorID,
			PatientID:     appt.PatientID,
			StartsAt:      appt.StartsAt,
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return Confirmation{}, err
	}

	s.logger.Info("appointment scheduled",
		"appointment_id", conf.AppointmentID,
		"doctor_id", conf.DoctorID,
		"starts_at", conf.StartsAt.UTC().Format(time.RFC3339),
	)
	return conf, nil
}

// Cancel transitions an appointment from scheduled to cancelled. Cancelling
// an already-cancelled appointment is an idempotent no-op that returns the
// recorded cancellation time; only a missing appointment is an error.
func (s *Service) Cancel(ctx context.Context, appointmentID string) (CancelResult, error) {
	ctx, span := s.tracer.Start(ctx, "agenda.cancel",
		trace.WithAttributes(attribute.String("appointment_id", appointmentID)),
	)
	defer span.End()

	var res CancelResult
	err := s.store.InTx(ctx, func(g Gateway) error {
		appt, err := g.GetAppointment(ctx, appointmentID)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return &NotFoundError{Resource: "appointment", ID: appointmentID}
			}
			return fmt.Errorf("load appointment: %w", err)
		}

		if appt.Status == model.AppointmentCancelled {
			res = CancelResult{AppointmentID: appt.ID, Status: appt.Status}
			if appt.CancelledAt != nil {
				res.CancelledAt = *appt.CancelledAt
			}
			return nil
		}

		cancelledAt, err := g.CancelAppointment(ctx, appt.ID)
		if err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}

		payload, err := json.Marshal(map[string]any{
			"appointment_id": appt.ID,
			"doctor_id":      appt.DoctorID,
			"patient_id":     appt.PatientID,
			"starts_at":      appt.StartsAt.UTC().Format(time.RFC3339),
			"cancelled_at":   cancelledAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("build cancellation event: %w", err)
		}
		if err := g.EnqueueEvent(ctx, outbox.Event{
			AggregateType: "appointment",
			AggregateID:   appt.ID,
			EventType:     outbox.EventAppointmentCancelled,
			Payload:       payload,
		}); err != nil {
			return fmt.Errorf("enqueue cancelled event: %w", err)
		}

		res = CancelResult{
			AppointmentID: appt.ID,
			Status:        model.AppointmentCancelled,
			CancelledAt:   cancelledAt,
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return CancelResult{}, err
	}

	s.logger.Info("appointment cancelled", "appointment_id", res.AppointmentID)
	return res, nil
}

// Get loads one appointment by id.
func (s *Service) Get(ctx context.Context, appointmentID string) (model.Appointment, error) {
	var appt model.Appointment
	err := s.store.InTx(ctx, func(g Gateway) error {
		var err error
		appt, err = g.GetAppointment(ctx, appointmentID)
		if errors.Is(err, ErrAppointmentNotFound) {
			return &NotFoundError{Resource: "appointment", ID: appointmentID}
		}
		return err
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *Service) resolveDoctor(ctx context.Context, g Gateway, req model.ReservationRequest) (string, error) {
	if req.DoctorID != "" {
		return req.DoctorID, nil
	}
	if req.Specialty == "" {
		return "", &rules.Violation{Reason: "specialty is required when no doctor is given"}
	}
	doctorID, ok, err := g.FindAvailableDoctor(ctx, req.Specialty, req.StartsAt)
	if err != nil {
		return "", fmt.Errorf("select doctor: %w", err)
	}
	if !ok {
		return "", &rules.Violation{Reason: "no doctor available at the requested time"}
	}
	return doctorID, nil
}

func (s *Service) enqueueScheduled(ctx context.Context, g Gateway, appt model.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"doctor_id":      appt.DoctorID,
		"patient_id":     appt.PatientID,
		"starts_at":      appt.StartsAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return g.EnqueueEvent(ctx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentScheduled,
		Payload:       payload,
	})
}
