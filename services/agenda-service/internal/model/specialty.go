package model

import (
	"fmt"
	"strings"
)

// Specialty is a closed set; requests naming anything else are rejected
// before they reach the reservation pipeline.
type Specialty string

const (
	Orthopedics Specialty = "orthopedics"
	Cardiology  Specialty = "cardiology"
	Gynecology  Specialty = "gynecology"
	Dermatology Specialty = "dermatology"
)

var specialties = []Specialty{Orthopedics, Cardiology, Gynecology, Dermatology}

func ParseSpecialty(raw string) (Specialty, error) {
	needle := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range specialties {
		if string(s) == needle {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown specialty %q", raw)
}
