// Package dataset loads the historical monthly rainfall table.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
)

// monthKeys maps the first three letters of a month column header to its index.
var monthKeys = map[string]int{
	"jan": 0, "feb": 1, "mar": 2, "apr": 3, "may": 4, "jun": 5,
	"jul": 6, "aug": 7, "sep": 8, "oct": 9, "nov": 10, "dec": 11,
}

// Dataset is the immutable historical table.
type Dataset struct {
	records []domain.RainfallRecord
}

// Summary describes the coverage of a dataset.
type Summary struct {
	FirstYear int `json:"first_year"`
	LastYear  int `json:"last_year"`
	Years     int `json:"years"`
	Months    int `json:"months"`
}

// LoadFile opens and parses a rainfall CSV file.
func LoadFile(path string) (*Dataset, error) {
	records, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	ds, err := New(records)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Load parses a rainfall CSV with a Year column, twelve month columns and a
// Total column. Rows must be ascending by year with no gaps or empty cells.
func Load(r io.Reader) (*Dataset, error) {
	records, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return New(records)
}

// ParseFile reads the records of a rainfall CSV file without checking year
// continuity or value ranges.
func ParseFile(path string) ([]domain.RainfallRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	records, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Parse reads CSV rows into records. Every cell must be present and numeric;
// continuity and sign are left to New.
func Parse(r io.Reader) ([]domain.RainfallRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var records []domain.RainfallRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := parseRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// New wraps already-parsed records after validating them.
func New(records []domain.RainfallRecord) (*Dataset, error) {
	if err := domain.ValidateRecords(records); err != nil {
		return nil, err
	}
	out := make([]domain.RainfallRecord, len(records))
	copy(out, records)
	return &Dataset{records: out}, nil
}

// Records returns a copy of the yearly records.
func (d *Dataset) Records() []domain.RainfallRecord {
	out := make([]domain.RainfallRecord, len(d.records))
	copy(out, d.records)
	return out
}

// Series flattens the dataset into a fresh monthly series.
func (d *Dataset) Series() (domain.RainfallSeries, error) {
	return domain.NewRainfallSeries(d.records)
}

// Summary reports the year range covered by the dataset.
func (d *Dataset) Summary() Summary {
	first, last := d.records[0].Year, d.records[len(d.records)-1].Year
	return Summary{
		FirstYear: first,
		LastYear:  last,
		Years:     len(d.records),
		Months:    len(d.records) * domain.MonthsPerYear,
	}
}

type columns struct {
	year   int
	total  int
	months [domain.MonthsPerYear]int
}

func mapColumns(header []string) (columns, error) {
	c := columns{year: -1, total: -1}
	for i := range c.months {
		c.months[i] = -1
	}

	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		switch {
		case key == "year":
			c.year = i
		case key == "total":
			c.total = i
		case len(key) >= 3:
			if m, ok := monthKeys[key[:3]]; ok {
				if c.months[m] != -1 {
					return c, fmt.Errorf("duplicate column for %s", domain.MonthNames[m])
				}
				c.months[m] = i
			}
		}
	}

	if c.year == -1 {
		return c, errors.New("missing Year column")
	}
	if c.total == -1 {
		return c, errors.New("missing Total column")
	}
	for m, idx := range c.months {
		if idx == -1 {
			return c, fmt.Errorf("missing column for %s", domain.MonthNames[m])
		}
	}
	return c, nil
}

func parseRow(row []string, c columns) (domain.RainfallRecord, error) {
	var rec domain.RainfallRecord

	year, err := strconv.Atoi(strings.TrimSpace(cell(row, c.year)))
	if err != nil {
		return rec, fmt.Errorf("invalid Year %q", cell(row, c.year))
	}
	rec.Year = year

	for m, idx := range c.months {
		v, err := parseValue(cell(row, idx))
		if err != nil {
			return rec, fmt.Errorf("year %d %s: %w", year, domain.MonthNames[m], err)
		}
		rec.Months[m] = v
	}

	total, err := parseValue(cell(row, c.total))
	if err != nil {
		return rec, fmt.Errorf("year %d Total: %w", year, err)
	}
	rec.Total = total
	return rec, nil
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("missing value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return v, nil
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
