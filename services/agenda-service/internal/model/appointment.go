package model

import "time"

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is the only record agenda-service creates and mutates. The
// single allowed mutation is the scheduled -> cancelled transition; rows are
// never deleted.
type Appointment struct {
	ID          string
	DoctorID    string
	PatientID   string
	StartsAt    time.Time
	Status      AppointmentStatus
	CancelledAt *time.Time
	CreatedAt   time.Time
}

type PartyStatus string

const (
	PartyActive   PartyStatus = "active"
	PartyInactive PartyStatus = "inactive"
)

// Doctor and Patient records are owned by the clinic back office and seeded
// into the database; this service only ever reads them.
type Doctor struct {
	ID            string
	FullName      string
	Email         string
	Phone         string
	LicenseNumber string
	Specialty     Specialty
	Status        PartyStatus
}

type Patient struct {
	ID       string
	FullName string
	Email    string
	Phone    string
	Document string
	Status   PartyStatus
}
