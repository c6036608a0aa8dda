package domain

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrInvalidForecastRange = &InvalidForecastRangeError{}
	ErrModelFit             = &ModelFitError{}
	ErrProvider             = &ProviderError{}
	ErrCorpusLookupMiss     = &CorpusLookupMissError{}
)

// InvalidForecastRangeError reports a target year that does not follow the data.
type InvalidForecastRangeError struct {
	TargetYear int
	LastYear   int
}

func (e *InvalidForecastRangeError) Error() string {
	if e.LastYear == 0 {
		return "target year must be after the last recorded year"
	}
	return fmt.Sprintf("target year must be after the last recorded year (got %d, last recorded %d)", e.TargetYear, e.LastYear)
}

// Is matches any InvalidForecastRangeError.
func (e *InvalidForecastRangeError) Is(target error) bool {
	_, ok := target.(*InvalidForecastRangeError)
	return ok
}

// ModelFitError wraps a failure to fit or forecast the statistical model.
type ModelFitError struct {
	Err error
}

func (e *ModelFitError) Error() string {
	if e.Err == nil {
		return "model fit failed"
	}
	return "model fit failed: " + e.Err.Error()
}

func (e *ModelFitError) Unwrap() error { return e.Err }

// Is matches any ModelFitError.
func (e *ModelFitError) Is(target error) bool {
	_, ok := target.(*ModelFitError)
	return ok
}

// ProviderError wraps a failure from a hosted embedding or chat provider.
type ProviderError struct {
	Provider string // e.g. "cohere", "openai"
	Op       string // "embed" or "complete"
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return "provider error"
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is matches any ProviderError.
func (e *ProviderError) Is(target error) bool {
	_, ok := target.(*ProviderError)
	return ok
}

// NewProviderError wraps err unless it is nil or already a ProviderError.
func NewProviderError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// CorpusLookupMissError reports that no knowledge document matched a term.
type CorpusLookupMissError struct {
	Term string
}

func (e *CorpusLookupMissError) Error() string {
	if e.Term == "" {
		return "no knowledge document found"
	}
	return fmt.Sprintf("no knowledge document found for term %q", e.Term)
}

// Is matches any CorpusLookupMissError.
func (e *CorpusLookupMissError) Is(target error) bool {
	_, ok := target.(*CorpusLookupMissError)
	return ok
}

// OutcomeOf classifies err into an activity outcome.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrInvalidForecastRange):
		return OutcomeInvalidRange
	case errors.Is(err, ErrModelFit):
		return OutcomeFitError
	case errors.Is(err, ErrProvider):
		return OutcomeProviderError
	case errors.Is(err, ErrCorpusLookupMiss):
		return OutcomeLookupMiss
	default:
		return OutcomeError
	}
}
