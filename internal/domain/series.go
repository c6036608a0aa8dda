package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ValidateRecords checks that records form a gap-free, ascending run of years
// with finite, non-negative monthly values.
func ValidateRecords(records []RainfallRecord) error {
	if len(records) == 0 {
		return errors.New("no rainfall records")
	}
	for i, rec := range records {
		if i > 0 && rec.Year != records[i-1].Year+1 {
			return fmt.Errorf("year %d follows %d: years must be consecutive and ascending", rec.Year, records[i-1].Year)
		}
		for m, v := range rec.Months {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("year %d %s: value is not finite", rec.Year, MonthNames[m])
			}
			if v < 0 {
				return fmt.Errorf("year %d %s: negative rainfall %.2f", rec.Year, MonthNames[m], v)
			}
		}
	}
	return nil
}

// NewRainfallSeries flattens records into one point per month, January of
// the first year through December of the last.
func NewRainfallSeries(records []RainfallRecord) (RainfallSeries, error) {
	if err := ValidateRecords(records); err != nil {
		return RainfallSeries{}, err
	}

	points := make([]SeriesPoint, 0, len(records)*MonthsPerYear)
	for _, rec := range records {
		for m, v := range rec.Months {
			points = append(points, SeriesPoint{
				Month: time.Date(rec.Year, time.Month(m+1), 1, 0, 0, 0, 0, time.UTC),
				Value: v,
			})
		}
	}
	return RainfallSeries{Points: points}, nil
}

// MonthlySum returns the sum of the twelve monthly values.
func (r RainfallRecord) MonthlySum() float64 {
	var sum float64
	for _, v := range r.Months {
		sum += v
	}
	return sum
}
