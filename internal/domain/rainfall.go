package domain

import "time"

// MonthsPerYear is the seasonal period of the rainfall series.
const MonthsPerYear = 12

// MonthNames lists the canonical month labels, January first.
var MonthNames = [MonthsPerYear]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// RainfallRecord is one calendar year of the historical table.
type RainfallRecord struct {
	Year   int                    `json:"year"`
	Months [MonthsPerYear]float64 `json:"months"` // mm, January first
	Total  float64                `json:"total"`  // published annual total, mm
}

// SeriesPoint is one month of rainfall.
type SeriesPoint struct {
	Month time.Time `json:"month"` // first day of the month, UTC
	Value float64   `json:"value"` // mm
}

// RainfallSeries is the historical table flattened into consecutive months.
type RainfallSeries struct {
	Points []SeriesPoint `json:"points"`
}

// Len returns the number of months in the series.
func (s RainfallSeries) Len() int { return len(s.Points) }

// Values returns the monthly values in chronological order.
func (s RainfallSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// LastMonth returns the month of the final observation, or the zero time for an empty series.
func (s RainfallSeries) LastMonth() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Month
}

// LastYear returns the calendar year of the final observation.
func (s RainfallSeries) LastYear() int {
	return s.LastMonth().Year()
}

// ForecastPoint is the model output for a single future month.
type ForecastPoint struct {
	Month time.Time `json:"month"`
	Mean  float64   `json:"mean"`
	Lower float64   `json:"lower"`
	Upper float64   `json:"upper"`
}

// ModelSummary describes the fitted seasonal ARIMA model.
type ModelSummary struct {
	Order         [3]int             `json:"order"`          // p, d, q
	SeasonalOrder [4]int             `json:"seasonal_order"` // P, D, Q, s
	Coefficients  map[string]float64 `json:"coefficients"`   // ar.L1, ma.L1, ar.S.L12, ma.S.L12
	Sigma2        float64            `json:"sigma2"`
	LogLikelihood float64            `json:"log_likelihood"`
	AIC           float64            `json:"aic"`
	Observations  int                `json:"observations"`
}

// ForecastResult is the response to a forecast request.
type ForecastResult struct {
	TargetYear       int             `json:"target_year"`
	LastObservedYear int             `json:"last_observed_year"`
	ConfidenceLevel  float64         `json:"confidence_level"`
	Points           []ForecastPoint `json:"points"`
	Model            ModelSummary    `json:"model"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// ForecastSteps returns the number of months forecast from the end of
// lastYear to targetYear. It is one short of the full horizon, so the
// December of targetYear is not produced; fullFinalYear restores it.
func ForecastSteps(lastYear, targetYear int, fullFinalYear bool) int {
	steps := (targetYear - lastYear) * MonthsPerYear
	if !fullFinalYear {
		steps--
	}
	return steps
}

// AddMonths returns the first day of the month n months after t.
func AddMonths(t time.Time, n int) time.Time {
	return time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
}
