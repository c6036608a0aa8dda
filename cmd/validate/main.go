// Command validate performs integrity checks on the service's input data: the
// historical rainfall CSV and the knowledge corpus JSON. It verifies row
// counts, year continuity, value ranges, published totals, and term
// uniqueness, reporting every problem found rather than stopping at the first.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -data data/hyd-monthly-rains.csv \
//	  -corpus data/my_db.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/couchcryptid/rainfall-insights/internal/dataset"
	"github.com/couchcryptid/rainfall-insights/internal/domain"
	"github.com/couchcryptid/rainfall-insights/internal/forecast"
)

// totalTolerance is how far a published Total may drift from the monthly sum, in mm.
const totalTolerance = 1.0

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataPath := flag.String("data", "", "path to the monthly rainfall CSV")
	corpusPath := flag.String("corpus", "", "path to the knowledge corpus JSON")
	flag.Parse()

	if *dataPath == "" || *corpusPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dataPath, *corpusPath); code != 0 {
		os.Exit(code)
	}
}

func run(dataPath, corpusPath string) int {
	fmt.Println("=== Rainfall Data Integrity Validation ===")
	fmt.Println()

	records, err := dataset.ParseFile(dataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load dataset: %v\n", err)
		return 1
	}

	docs, err := loadCorpus(corpusPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load corpus: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateRowCount(records),
		validateYearContinuity(records),
		validateMonthlyValues(records),
		validateTotals(records),
		validateCorpus(docs),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d years (%d months), %d corpus terms\n",
		len(records), len(records)*domain.MonthsPerYear, len(docs))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// loadCorpus decodes the corpus without validating it, so every problem can
// be reported by validateCorpus.
func loadCorpus(path string) ([]domain.KnowledgeDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var docs []domain.KnowledgeDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return docs, nil
}

// ── Dataset phases ──

func validateRowCount(records []domain.RainfallRecord) *phase {
	p := &phase{name: "Phase 1: Row count"}
	if len(records) == 0 {
		p.errorf("no data rows")
		return p
	}
	if months := len(records) * domain.MonthsPerYear; months < forecast.MinObservations {
		p.errorf("%d months of data, the model needs at least %d", months, forecast.MinObservations)
	}
	fmt.Printf("Dataset: %d rows, %d-%d\n", len(records), records[0].Year, records[len(records)-1].Year)
	return p
}

func validateYearContinuity(records []domain.RainfallRecord) *phase {
	p := &phase{name: "Phase 2: Year continuity"}
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1].Year, records[i].Year
		switch {
		case cur == prev:
			p.errorf("year %d: duplicate row", cur)
		case cur < prev:
			p.errorf("year %d: follows %d, rows must be ascending", cur, prev)
		case cur != prev+1:
			p.errorf("years %d-%d: missing", prev+1, cur-1)
		}
	}
	return p
}

func validateMonthlyValues(records []domain.RainfallRecord) *phase {
	p := &phase{name: "Phase 3: Monthly values"}
	for _, rec := range records {
		for m, v := range rec.Months {
			switch {
			case math.IsNaN(v) || math.IsInf(v, 0):
				p.errorf("year %d %s: value is not finite", rec.Year, domain.MonthNames[m])
			case v < 0:
				p.errorf("year %d %s: negative rainfall %.2f", rec.Year, domain.MonthNames[m], v)
			}
		}
	}
	return p
}

func validateTotals(records []domain.RainfallRecord) *phase {
	p := &phase{name: "Phase 4: Total vs monthly sum"}
	for _, rec := range records {
		sum := rec.MonthlySum()
		if diff := math.Abs(sum - rec.Total); diff > totalTolerance {
			p.errorf("year %d: Total %.1f differs from monthly sum %.1f by %.2f mm", rec.Year, rec.Total, sum, diff)
		}
	}
	return p
}

// ── Corpus phase ──

func validateCorpus(docs []domain.KnowledgeDocument) *phase {
	p := &phase{name: "Phase 5: Corpus terms"}
	if len(docs) == 0 {
		p.errorf("corpus is empty")
		return p
	}
	seen := make(map[string]int, len(docs))
	for i, d := range docs {
		if strings.TrimSpace(d.Term) == "" {
			p.errorf("document %d: term is blank", i)
			continue
		}
		if strings.TrimSpace(d.Text) == "" {
			p.errorf("document %d (%s): text is blank", i, d.Term)
		}
		key := strings.ToLower(strings.TrimSpace(d.Term))
		if j, ok := seen[key]; ok {
			p.errorf("document %d: duplicate term %q (first seen at %d)", i, d.Term, j)
			continue
		}
		seen[key] = i
	}
	fmt.Printf("Corpus: %d documents, %d unique terms\n", len(docs), len(seen))
	return p
}
