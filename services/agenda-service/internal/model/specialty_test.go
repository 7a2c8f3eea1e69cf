package model

import "testing"

func TestParseSpecialty(t *testing.T) {
	tests := []struct {
		in      string
		want    Specialty
		wantErr bool
	}{
		{"cardiology", Cardiology, false},
		{"Cardiology", Cardiology, false},
		{"  ORTHOPEDICS ", Orthopedics, false},
		{"gynecology", Gynecology, false},
		{"dermatology", Dermatology, false},
		{"astrology", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSpecialty(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseSpecialty(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseSpecialty(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseSpecialty(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
