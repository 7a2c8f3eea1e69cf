package model

import "time"

// ReservationRequest is the transient input to the reservation pipeline. It
// is never persisted; a successful reservation consumes it and produces an
// Appointment. DoctorID may be empty, in which case Specialty must be set
// and a doctor is selected automatically.
type ReservationRequest struct {
	DoctorID  string
	PatientID string
	StartsAt  time.Time
	Specialty Specialty
}
