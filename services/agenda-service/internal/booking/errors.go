package booking

import (
	"errors"
	"fmt"
)

// Sentinels the storage gateway maps low-level failures onto. The slot/day
// sentinels surface when the database uniqueness constraints reject a write
// that passed the validators (two requests racing for the same slot); the
// coordinator folds them back into the matching rule violation so callers
// see one conflict category either way.
var (
	ErrDoctorSlotTaken     = errors.New("doctor slot already taken")
	ErrPatientDayTaken     = errors.New("patient day already taken")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// NotFoundError reports that a referenced record does not exist. It is
// distinct from a rule violation.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}
