package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DemographicOptions are the choices offered by the demographics form. Only the
// synthetic data generator relies on them; stored demographics are free-form.
var DemographicOptions = map[string][]string{
	"age_range":  {"Prefer not to say", "18-26", "27-36", "37-50", "Over 50"},
	"gender":     {"Prefer not to say", "Male", "Female"},
	"country":    {"Prefer not to say", "Italy", "United States", "Canada", "United Kingdom", "Australia", "Germany", "France", "Spain", "Brazil", "Mexico", "Japan", "China", "India", "South Korea", "Other"},
	"education":  {"Prefer not to say", "No degree", "High School Degree", "Bachelor's Degree", "Master's Degree", "PhD"},
	"occupation": {"Prefer not to say", "Unemployed", "Student", "Employee", "Self-employed", "Homemaker", "Retired"},
	"premium":    {"Prefer not to say", "Yes", "No", "I don't know"},
	"payed":      {"Prefer not to say", "Yes", "No", "I don't know"},
	"device":     {"Prefer not to say", "Smartphone", "Computer", "Tablet", "Smart speaker (e.g., Amazon Echo)", "Car stereo", "Other"},
}

// DemographicMultiOptions are the multi-select questions of the form.
var DemographicMultiOptions = map[string][]string{
	"music_background": {
		"I play an instrument",
		"I have formal music education",
		"I work in the music industry",
		"I'm a casual listener",
		"Music is an important part of my daily life",
		"I attend concerts/festivals regularly",
		"I create/produce music",
	},
	"listening_moments": {"Studying", "Working", "Traveling", "Driving", "Relaxing"},
}

// MaxListeningHours bounds the daily listening slider.
const MaxListeningHours = 12

// ErrInvalidField reports a form field name that cannot be stored.
var ErrInvalidField = errors.New("invalid field name")

// ValidateFields checks the top-level keys of a free-form field map.
func ValidateFields(fields map[string]any) error {
	for key := range fields {
		if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "$") || strings.Contains(key, ".") {
			return fmt.Errorf("%w: %q", ErrInvalidField, key)
		}
	}
	return nil
}
