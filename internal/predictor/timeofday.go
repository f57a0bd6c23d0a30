package predictor

import "time"

// Fixed suggestion probabilities for the time-of-day signal. They sit above
// the default MinProbability so a cold-start Predict is never empty, while
// staying low enough that any real sequence pattern outranks them.
const (
	primarySuggestionProb   = 0.25
	secondarySuggestionProb = 0.18
)

type daypart int

const (
	morning daypart = iota
	afternoon
	evening
	night
)

func daypartOf(t time.Time) daypart {
	switch hour := t.Hour(); {
	case hour >= 5 && hour < 12:
		return morning
	case hour >= 12 && hour < 17:
		return afternoon
	case hour >= 17 && hour < 22:
		return evening
	default:
		return night
	}
}

// timeOfDaySuggestions returns the fixed suggestions for the current time
// bucket, ordered most likely first.
func timeOfDaySuggestions(now time.Time) []Prediction {
	switch daypartOf(now) {
	case morning:
		return []Prediction{
			{ModuleID: "calendar", Probability: primarySuggestionProb, Reason: "morning routine"},
			{ModuleID: "tasks", Probability: secondarySuggestionProb, Reason: "morning routine"},
		}
	case afternoon:
		return []Prediction{
			{ModuleID: "notes", Probability: primarySuggestionProb, Reason: "afternoon work"},
			{ModuleID: "tasks", Probability: secondarySuggestionProb, Reason: "afternoon work"},
		}
	case evening:
		return []Prediction{
			{ModuleID: "journal", Probability: primarySuggestionProb, Reason: "evening wind-down"},
			{ModuleID: "media", Probability: secondarySuggestionProb, Reason: "evening wind-down"},
		}
	default:
		return []Prediction{
			{ModuleID: "journal", Probability: primarySuggestionProb, Reason: "late night"},
		}
	}
}
