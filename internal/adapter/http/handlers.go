package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
)

const (
	maxBodyBytes   = 1 << 20
	publishTimeout = 5 * time.Second
)

type forecastRequest struct {
	TargetYear *int `json:"target_year"`
}

type explanationRequest struct {
	Term string `json:"term"`
}

type termsResponse struct {
	Terms []string `json:"terms"`
}

func (s *Server) handleDataset(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.svc.Summary)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.TargetYear == nil {
		writeProblem(w, r, http.StatusBadRequest, "target_year is required")
		return
	}

	start := time.Now()
	result, err := s.svc.Forecaster.Forecast(r.Context(), s.svc.Series, *req.TargetYear)
	elapsed := time.Since(start)
	outcome := domain.OutcomeOf(err)

	s.metrics.ForecastRequests.WithLabelValues(outcome).Inc()
	s.metrics.ForecastDuration.Observe(elapsed.Seconds())
	s.publish(r, domain.ActivityEvent{
		Kind:       domain.KindForecast,
		Outcome:    outcome,
		TargetYear: *req.TargetYear,
		Steps:      len(result.Points),
		Duration:   elapsed,
	})

	if err != nil {
		s.fail(w, r, err, "forecast failed", "target_year", *req.TargetYear)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleTerms(w http.ResponseWriter, _ *http.Request) {
	terms := s.svc.Explainer.Terms()
	if terms == nil {
		terms = []string{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, termsResponse{Terms: terms})
}

func (s *Server) handleExplanation(w http.ResponseWriter, r *http.Request) {
	var req explanationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	term := strings.TrimSpace(req.Term)
	if term == "" {
		writeProblem(w, r, http.StatusBadRequest, "term is required")
		return
	}

	// Only listed terms are selectable; anything else is a lookup miss
	// rather than a nearest-neighbour guess.
	canonical, ok := s.findTerm(term)
	var (
		result domain.ExplanationResult
		err    error
	)
	start := time.Now()
	if ok {
		result, err = s.svc.Explainer.Explain(r.Context(), canonical)
	} else {
		err = &domain.CorpusLookupMissError{Term: term}
	}
	elapsed := time.Since(start)
	outcome := domain.OutcomeOf(err)

	s.metrics.ExplanationRequests.WithLabelValues(outcome).Inc()
	s.metrics.ExplanationDuration.Observe(elapsed.Seconds())
	s.publish(r, domain.ActivityEvent{
		Kind:     domain.KindExplanation,
		Outcome:  outcome,
		Term:     term,
		Duration: elapsed,
	})

	if err != nil {
		s.fail(w, r, err, "explanation failed", "term", term)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) findTerm(term string) (string, bool) {
	for _, t := range s.svc.Explainer.Terms() {
		if strings.EqualFold(t, term) {
			return t, true
		}
	}
	return "", false
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, msg string, attrs ...any) {
	status := statusFor(err)
	attrs = append(attrs, "request_id", RequestIDFrom(r.Context()), "status", status, "error", err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, attrs...)
	} else {
		s.logger.Warn(msg, attrs...)
	}
	writeProblem(w, r, status, err.Error())
}

// publish emits an activity event without blocking the response on failure.
func (s *Server) publish(r *http.Request, event domain.ActivityEvent) {
	event.ID = uuid.Must(uuid.NewV7()).String()
	event.OccurredAt = domain.Now()

	// Detach from request cancellation so an aborted client still gets recorded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), publishTimeout)
	defer cancel()
	if err := s.svc.Publisher.Publish(ctx, event); err != nil {
		s.metrics.EventsPublished.WithLabelValues("error").Inc()
		s.logger.Warn("publish activity event failed",
			"request_id", RequestIDFrom(r.Context()),
			"kind", event.Kind,
			"error", err,
		)
		return
	}
	s.metrics.EventsPublished.WithLabelValues("success").Inc()
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}
