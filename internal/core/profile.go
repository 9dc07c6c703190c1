package core

import "strings"

const (
	defaultUnspecified = "Tidak spesifik"
	defaultNone        = "Tidak ada"
	defaultDuration    = "1 minggu"
)

type UserProfile struct {
	Goal              string      `json:"goal"`
	Duration          string      `json:"duration"`
	Age               int         `json:"age"`
	Weight            Measurement `json:"weight"`
	Height            Measurement `json:"height"`
	EatingPattern     string      `json:"eatingPattern"`
	Allergies         string      `json:"allergies"`
	Dislikes          string      `json:"dislikes"`
	ExerciseFrequency string      `json:"exerciseFrequency"`
	SleepQuality      string      `json:"sleepQuality"`
}

// WithDefaults fills blank text fields. Weight and height have no default.
func (p UserProfile) WithDefaults() UserProfile {
	fill := func(s *string, def string) {
		if strings.TrimSpace(*s) == "" {
			*s = def
		}
	}
	fill(&p.Goal, defaultUnspecified)
	fill(&p.EatingPattern, defaultUnspecified)
	fill(&p.ExerciseFrequency, defaultUnspecified)
	fill(&p.SleepQuality, defaultUnspecified)
	fill(&p.Allergies, defaultNone)
	fill(&p.Dislikes, defaultNone)
	fill(&p.Duration, defaultDuration)
	return p
}
