// Package rules holds the business-constraint checks every reservation must
// pass. The checks run in a fixed order and fail fast: the first violated
// rule aborts the reservation and only its reason reaches the caller.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/r-ledesma/medagenda/services/agenda-service/internal/model"
)

// Violation is a business-rule failure. It is a client error, distinct from
// infrastructure errors, and carries a single human-readable reason.
type Violation struct {
	Reason string
}

func (v *Violation) Error() string { return v.Reason }

// Gateway is the slice of the storage contract the rules need. Every call is
// expected to run inside the transaction the coordinator opened.
type Gateway interface {
	DoctorActive(ctx context.Context, doctorID string) (bool, error)
	PatientActive(ctx context.Context, patientID string) (bool, error)
	DoctorBookedAt(ctx context.Context, doctorID string, at time.Time) (bool, error)
	PatientBookedBetween(ctx context.Context, patientID string, from, to time.Time) (bool, error)
}

type Rule interface {
	Name() string
	Check(ctx context.Context, g Gateway, req model.ReservationRequest, now time.Time) error
}

// Default assembles the rule set in its documented evaluation order:
// office hours, lead time, doctor active, patient active, doctor slot free,
// patient day free.
func Default(hours model.OfficeHours, lead time.Duration) []Rule {
	return []Rule{
		officeHoursRule{hours: hours},
		leadTimeRule{min: lead},
		doctorActiveRule{},
		patientActiveRule{},
		doctorSlotFreeRule{},
		patientDayFreeRule{hours: hours},
	}
}

// Evaluate runs the rules in order and returns the first violation or
// infrastructure error. Later rules are not evaluated after a failure.
func Evaluate(ctx context.Context, g Gateway, set []Rule, req model.ReservationRequest, now time.Time) error {
	for _, r := range set {
		if err := r.Check(ctx, g, req, now); err != nil {
			return err
		}
	}
	return nil
}

type officeHoursRule struct {
	hours model.OfficeHours
}

func (officeHoursRule) Name() string { return "office_hours" }

func (r officeHoursRule) Check(_ context.Context, _ Gateway, req model.ReservationRequest, _ time.Time) error {
	if !r.hours.Allows(req.StartsAt) {
		return &Violation{Reason: "requested time is outside office hours"}
	}
	return nil
}

type leadTimeRule struct {
	min time.Duration
}

func (leadTimeRule) Name() string { return "lead_time" }

func (r leadTimeRule) Check(_ context.Context, _ Gateway, req model.ReservationRequest, now time.Time) error {
	if req.StartsAt.Sub(now) < r.min {
		return &Violation{Reason: fmt.Sprintf("appointments must be booked at least %d minutes in advance", int(r.min.Minutes()))}
	}
	return nil
}

type doctorActiveRule struct{}

func (doctorActiveRule) Name() string { return "doctor_active" }

// When no doctor was named the request goes through automatic selection,
// which only ever considers active doctors, so the check is skipped here.
func (doctorActiveRule) Check(ctx context.Context, g Gateway, req model.ReservationRequest, _ time.Time) error {
	if req.DoctorID == "" {
		return nil
	}
	active, err := g.DoctorActive(ctx, req.DoctorID)
	if err != nil {
		return fmt.Errorf("check doctor status: %w", err)
	}
	if !active {
		return &Violation{Reason: "doctor is not active"}
	}
	return nil
}

type patientActiveRule struct{}

func (patientActiveRule) Name() string { return "patient_active" }

func (patientActiveRule) Check(ctx context.Context, g Gateway, req model.ReservationRequest, _ time.Time) error {
	active, err := g.PatientActive(ctx, req.PatientID)
	if err != nil {
		return fmt.Errorf("check patient status: %w", err)
	}
	if !active {
		return &Violation{Reason: "patient is not active"}
	}
	return nil
}

type doctorSlotFreeRule struct{}

func (doctorSlotFreeRule) Name() string { return "doctor_slot_free" }

func (doctorSlotFreeRule) Check(ctx context.Context, g Gateway, req model.ReservationRequest, _ time.Time) error {
	if req.DoctorID == "" {
		return nil
	}
	booked, err := g.DoctorBookedAt(ctx, req.DoctorID, req.StartsAt)
	if err != nil {
		return fmt.Errorf("check doctor agenda: %w", err)
	}
	if booked {
		return &Violation{Reason: "doctor already has an appointment at that time"}
	}
	return nil
}

type patientDayFreeRule struct {
	hours model.OfficeHours
}

func (patientDayFreeRule) Name() string { return "patient_day_free" }

func (r patientDayFreeRule) Check(ctx context.Context, g Gateway, req model.ReservationRequest, _ time.Time) error {
	dayStart, dayEnd := r.hours.DayWindow(req.StartsAt)
	booked, err := g.PatientBookedBetween(ctx, req.PatientID, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("check patient agenda: %w", err)
	}
	if booked {
		return &Violation{Reason: "patient already has an appointment that day"}
	}
	return nil
}
