package domain

import "time"

// Activity kinds.
const (
	KindForecast    = "forecast"
	KindExplanation = "explanation"
)

// Activity outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeInvalidRange  = "invalid_range"
	OutcomeFitError      = "fit_error"
	OutcomeProviderError = "provider_error"
	OutcomeLookupMiss    = "lookup_miss"
	OutcomeError         = "error"
)

// ActivityEvent summarizes a handled request for the activity stream.
// It intentionally carries no forecast values or generated text.
type ActivityEvent struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	Outcome    string        `json:"outcome"`
	TargetYear int           `json:"target_year,omitempty"`
	Steps      int           `json:"steps,omitempty"`
	Term       string        `json:"term,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	OccurredAt time.Time     `json:"occurred_at"`
}
