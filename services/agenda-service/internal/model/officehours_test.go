package model

import (
	"testing"
	"time"
)

func TestOfficeHoursAllows(t *testing.T) {
	hours := DefaultOfficeHours()

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"sunday closed", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), false},
		{"monday before opening", time.Date(2026, 3, 2, 6, 59, 0, 0, time.UTC), false},
		{"monday first slot", time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC), true},
		{"monday midday", time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC), true},
		{"monday last slot", time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC), true},
		{"monday at closing", time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC), false},
		{"saturday open", time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hours.Allows(tt.t); got != tt.want {
				t.Fatalf("Allows(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestOfficeHoursAllowsTwoHourVisits(t *testing.T) {
	hours := DefaultOfficeHours()
	hours.VisitLength = 2 * time.Hour

	if hours.Allows(time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)) {
		t.Fatal("18:00 start with a two-hour visit would run past closing")
	}
	if !hours.Allows(time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)) {
		t.Fatal("17:00 start with a two-hour visit ends exactly at closing")
	}
}

func TestOfficeHoursDayWindow(t *testing.T) {
	hours := DefaultOfficeHours()

	from, to := hours.DayWindow(time.Date(2026, 3, 2, 15, 45, 0, 0, time.UTC))
	if want := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC); !from.Equal(want) {
		t.Fatalf("window start = %v, want %v", from, want)
	}
	if want := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC); !to.Equal(want) {
		t.Fatalf("window end = %v, want %v", to, want)
	}
}
