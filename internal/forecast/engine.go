// Package forecast fits a seasonal ARIMA(1,1,1)(1,1,1)[12] model to a monthly
// rainfall series and projects it forward with 95% confidence bounds.
package forecast

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
)

// ConfidenceLevel is the coverage of the reported forecast bounds.
const ConfidenceLevel = 0.95

// Engine refits the model on every call and holds no state between calls,
// so one Engine can serve concurrent requests.
type Engine struct {
	logger         *slog.Logger
	timeout        time.Duration
	fullFinalYear  bool
	maxEvaluations int
	z              float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithFullFinalYear makes the horizon run through December of the target
// year instead of stopping one month short.
func WithFullFinalYear() Option {
	return func(e *Engine) { e.fullFinalYear = true }
}

// WithTimeout bounds each fit. Zero leaves only the caller's deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithMaxEvaluations caps the objective evaluations per fit.
func WithMaxEvaluations(n int) Option {
	return func(e *Engine) { e.maxEvaluations = n }
}

// NewEngine creates a forecast engine.
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger:         logger,
		maxEvaluations: defaultMaxEvaluations,
		z:              distuv.UnitNormal.Quantile(1 - (1-ConfidenceLevel)/2),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Forecast fits the model to series and returns monthly forecasts from the
// month after the last observation up to targetYear.
func (e *Engine) Forecast(ctx context.Context, series domain.RainfallSeries, targetYear int) (domain.ForecastResult, error) {
	if series.Len() == 0 {
		return domain.ForecastResult{}, &domain.ModelFitError{Err: errors.New("series is empty")}
	}

	lastYear := series.LastYear()
	if targetYear <= lastYear {
		return domain.ForecastResult{}, &domain.InvalidForecastRangeError{TargetYear: targetYear, LastYear: lastYear}
	}
	steps := domain.ForecastSteps(lastYear, targetYear, e.fullFinalYear)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	settings := fitSettings{maxEvaluations: e.maxEvaluations}
	if deadline, ok := ctx.Deadline(); ok {
		settings.runtime = time.Until(deadline)
		if settings.runtime <= 0 {
			return domain.ForecastResult{}, &domain.ModelFitError{Err: context.DeadlineExceeded}
		}
	}

	start := time.Now()
	values := series.Values()
	model, err := fitSARIMA(ctx, values, settings)
	if err != nil {
		e.logger.Warn("model fit failed", "target_year", targetYear, "error", err)
		return domain.ForecastResult{}, &domain.ModelFitError{Err: err}
	}

	mean, lower, upper := model.forecast(values, steps, e.z)
	points := make([]domain.ForecastPoint, steps)
	lastMonth := series.LastMonth()
	for h := range points {
		if !finite(mean[h]) || !finite(lower[h]) || !finite(upper[h]) {
			return domain.ForecastResult{}, &domain.ModelFitError{Err: errors.New("forecast is not finite")}
		}
		points[h] = domain.ForecastPoint{
			Month: domain.AddMonths(lastMonth, h+1),
			Mean:  mean[h],
			Lower: lower[h],
			Upper: upper[h],
		}
	}

	summary := model.summary()
	e.logger.Debug("forecast complete",
		"target_year", targetYear,
		"steps", steps,
		"sigma2", summary.Sigma2,
		"aic", summary.AIC,
		"duration", time.Since(start),
	)

	return domain.ForecastResult{
		TargetYear:       targetYear,
		LastObservedYear: lastYear,
		ConfidenceLevel:  ConfidenceLevel,
		Points:           points,
		Model:            summary,
		GeneratedAt:      domain.Now(),
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
