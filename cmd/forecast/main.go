// Command forecast fits the seasonal model to a rainfall CSV and writes the
// forecast result as JSON. It runs the same engine as the API.
//
// Usage:
//
//	go run ./cmd/forecast \
//	  -data data/hyd-monthly-rains.csv \
//	  -year 2024 \
//	  -out forecast-2024.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/rainfall-insights/internal/dataset"
	"github.com/couchcryptid/rainfall-insights/internal/domain"
	"github.com/couchcryptid/rainfall-insights/internal/forecast"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataPath := flag.String("data", "data/hyd-monthly-rains.csv", "path to the monthly rainfall CSV")
	year := flag.Int("year", 0, "target year to forecast through")
	out := flag.String("out", "", "output path for the forecast JSON (default stdout)")
	fullYear := flag.Bool("full-year", false, "forecast through December of the target year")
	timeout := flag.Duration("timeout", 2*time.Minute, "maximum time for the model fit")
	generatedAt := flag.String("generated-at", "", "fixed RFC3339 timestamp for reproducible output")
	verbose := flag.Bool("v", false, "log model fitting details to stderr")
	flag.Parse()

	if *year == 0 {
		flag.Usage()
		return fmt.Errorf("missing required flag: -year")
	}

	if *generatedAt != "" {
		ts, err := time.Parse(time.RFC3339, *generatedAt)
		if err != nil {
			return fmt.Errorf("parse -generated-at: %w", err)
		}
		domain.SetClock(clockwork.NewFakeClockAt(ts))
		defer domain.SetClock(nil)
	}

	ds, err := dataset.LoadFile(*dataPath)
	if err != nil {
		return err
	}
	series, err := ds.Series()
	if err != nil {
		return err
	}

	opts := []forecast.Option{forecast.WithTimeout(*timeout)}
	if *fullYear {
		opts = append(opts, forecast.WithFullFinalYear())
	}
	// Stdout may carry the JSON result, so fit logs go to stderr.
	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	engine := forecast.NewEngine(logger, opts...)

	result, err := engine.Forecast(context.Background(), series, *year)
	if err != nil {
		return err
	}

	if *out == "" {
		if err := encode(os.Stdout, result); err != nil {
			return err
		}
	} else {
		if err := writeJSON(*out, result); err != nil {
			return fmt.Errorf("writing forecast: %w", err)
		}
		log.Printf("wrote forecast: %s", *out)
	}

	printStats(result)
	return nil
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// printStats logs per-year totals of the forecast means to stderr.
func printStats(result domain.ForecastResult) {
	totals := map[int]float64{}
	months := map[int]int{}
	var years []int
	for _, p := range result.Points {
		y := p.Month.Year()
		if _, seen := months[y]; !seen {
			years = append(years, y)
		}
		totals[y] += p.Mean
		months[y]++
	}

	log.Printf("model: SARIMA%v%v aic=%.2f sigma2=%.3f n=%d",
		result.Model.Order, result.Model.SeasonalOrder, result.Model.AIC, result.Model.Sigma2, result.Model.Observations)
	for _, y := range years {
		log.Printf("%d: %d months, forecast total %.1f mm", y, months[y], totals[y])
	}
}
