package model

import "time"

// OfficeHours describes when the clinic accepts visits. The clinic is closed
// one weekday per week; on open days visits may start at any hour h with
// OpenHour <= h <= CloseHour - visit length, so the last visit ends exactly
// at closing time.
type OfficeHours struct {
	ClosedWeekday time.Weekday
	OpenHour      int
	CloseHour     int
	VisitLength   time.Duration
	Location      *time.Location
}

func DefaultOfficeHours() OfficeHours {
	return OfficeHours{
		ClosedWeekday: time.Sunday,
		OpenHour:      7,
		CloseHour:     19,
		VisitLength:   time.Hour,
		Location:      time.UTC,
	}
}

// Allows reports whether a visit may start at t.
func (o OfficeHours) Allows(t time.Time) bool {
	local := t.In(o.location())
	if local.Weekday() == o.ClosedWeekday {
		return false
	}
	h := local.Hour()
	return h >= o.OpenHour && h <= o.lastStartHour()
}

// DayWindow returns the business-hours window [open, close) of the day t
// falls on. The patient-per-day invariant is evaluated against this window,
// not against midnight-to-midnight.
func (o OfficeHours) DayWindow(t time.Time) (time.Time, time.Time) {
	local := t.In(o.location())
	open := time.Date(local.Year(), local.Month(), local.Day(), o.OpenHour, 0, 0, 0, o.location())
	close := time.Date(local.Year(), local.Month(), local.Day(), o.CloseHour, 0, 0, 0, o.location())
	return open, close
}

func (o OfficeHours) lastStartHour() int {
	visitHours := int(o.VisitLength / time.Hour)
	if visitHours < 1 {
		visitHours = 1
	}
	return o.CloseHour - visitHours
}

func (o OfficeHours) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}
