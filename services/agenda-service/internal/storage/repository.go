package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/r-ledesma/medagenda/libs/db"
	"github.com/r-ledesma/medagenda/services/agenda-service/internal/booking"
	"github.com/r-ledesma/medagenda/services/agenda-service/internal/model"
	"github.com/r-ledesma/medagenda/services/agenda-service/internal/outbox"
)

// Repository implements the coordinator's Store contract on Postgres. The
// schema backs the two scheduling invariants with partial unique indexes
// (appointments_doctor_slot_key, appointments_patient_day_key) so the
// database is the final arbiter when concurrent requests race past the
// validators. The patient-day index is keyed on the starts_on column, which
// the insert derives from loc; loc must be the same zone the office-hours
// window uses or the two boundaries drift apart.
type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
	loc    *time.Location
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository, loc *time.Location) *Repository {
	if loc == nil {
		loc = time.UTC
	}
	return &Repository{pool: pool, outbox: outboxRepo, loc: loc}
}

func (r *Repository) InTx(ctx context.Context, fn func(booking.Gateway) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&txGateway{tx: tx, outbox: r.outbox, loc: r.loc}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txGateway struct {
	tx     pgx.Tx
	outbox *outbox.Repository
	loc    *time.Location
}

func (g *txGateway) PatientExists(ctx context.Context, patientID string) (bool, error) {
	var exists bool
	err := g.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)
	`, patientID).Scan(&exists)
	return exists, err
}

func (g *txGateway) PatientActive(ctx context.Context, patientID string) (bool, error) {
	var active bool
	err := g.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND status = 'active')
	`, patientID).Scan(&active)
	return active, err
}

func (g *txGateway) DoctorExists(ctx context.Context, doctorID string) (bool, error) {
	var exists bool
	err := g.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)
	`, doctorID).Scan(&exists)
	return exists, err
}

func (g *txGateway) DoctorActive(ctx context.Context, doctorID string) (bool, error) {
	var active bool
	err := g.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1 AND status = 'active')
	`, doctorID).Scan(&active)
	return active, err
}

func (g *txGateway) DoctorBookedAt(ctx context.Context, doctorID string, at time.Time) (bool, error) {
	var booked bool
	err := g.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND starts_at = $2 AND status = 'scheduled'
		)
	`, doctorID, at).Scan(&booked)
	return booked, err
}

func (g *txGateway) PatientBookedBetween(ctx context.Context, patientID string, from, to time.Time) (bool, error) {
	var booked bool
	err := g.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1
				AND status = 'scheduled'
				AND starts_at >= $2
				AND starts_at < $3
		)
	`, patientID, from, to).Scan(&booked)
	return booked, err
}

// FindAvailableDoctor picks among eligible candidates by lowest id. The
// ordering is the documented tie-break policy; do not change it without
// revisiting the reservation tests that rely on it.
func (g *txGateway) FindAvailableDoctor(ctx context.Context, specialty model.Specialty, at time.Time) (string, bool, error) {
	var doctorID string
	err := g.tx.QueryRow(ctx, `
		SELECT d.id::text
		FROM doctors d
		WHERE d.status = 'active'
			AND d.specialty = $1
			AND NOT EXISTS (
				SELECT 1 FROM appointments a
				WHERE a.doctor_id = d.id AND a.starts_at = $2 AND a.status = 'scheduled'
			)
		ORDER BY d.id
		LIMIT 1
	`, string(specialty), at).Scan(&doctorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doctorID, true, nil
}

func (g *txGateway) CreateAppointment(ctx context.Context, doctorID, patientID string, at time.Time) (model.Appointment, error) {
	appt := model.Appointment{
		ID:        uuid.NewString(),
		DoctorID:  doctorID,
		PatientID: patientID,
		StartsAt:  at,
		Status:    model.AppointmentScheduled,
	}
	err := g.tx.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, starts_at, starts_on, status)
		VALUES ($1, $2, $3, $4, $5, 'scheduled')
		RETURNING created_at
	`, appt.ID, doctorID, patientID, at, clinicDay(at, g.loc)).Scan(&appt.CreatedAt)
	if err != nil {
		return model.Appointment{}, mapConflict(err)
	}
	return appt, nil
}

// clinicDay is the calendar day of at in the clinic timezone, the value the
// appointments_patient_day_key index dedupes on. It must agree with the
// office-hours day window: every start inside DayWindow(t) yields the same
// clinicDay as t.
func clinicDay(at time.Time, loc *time.Location) time.Time {
	local := at.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func (g *txGateway) GetAppointment(ctx context.Context, appointmentID string) (model.Appointment, error) {
	var appt model.Appointment
	var cancelledAt *time.Time
	err := g.tx.QueryRow(ctx, `
		SELECT id::text, doctor_id::text, patient_id::text, starts_at, status, cancelled_at, created_at
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, appointmentID).Scan(
		&appt.ID,
		&appt.DoctorID,
		&appt.PatientID,
		&appt.StartsAt,
		&appt.Status,
		&cancelledAt,
		&appt.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, booking.ErrAppointmentNotFound
	}
	if err != nil {
		return model.Appointment{}, err
	}
	appt.CancelledAt = cancelledAt
	return appt, nil
}

func (g *txGateway) CancelAppointment(ctx context.Context, appointmentID string) (time.Time, error) {
	var cancelledAt time.Time
	err := g.tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now()
		WHERE id = $1 AND status = 'scheduled'
		RETURNING cancelled_at
	`, appointmentID).Scan(&cancelledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, booking.ErrAppointmentNotFound
	}
	return cancelledAt, err
}

func (g *txGateway) EnqueueEvent(ctx context.Context, evt outbox.Event) error {
	return g.outbox.Insert(ctx, g.tx, evt)
}

func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "appointments_doctor_slot_key":
			return booking.ErrDoctorSlotTaken
		case "appointments_patient_day_key":
			return booking.ErrPatientDayTaken
		}
	}
	return err
}
