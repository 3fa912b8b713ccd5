// Command validate checks a day of refined rows in the SQLite mirror against
// the day's prices. It recomputes every hour's classification, compares it
// with the mirrored row, and verifies the day-level invariants of the
// refined flags.
//
// Prices come from a JSON fixture, or from InfluxDB (configured through the
// usual environment variables) when -prices is omitted.
//
// Usage:
//
//	go run ./cmd/validate -date 2024-04-26 -sqlite data/refined.db
//	go run ./cmd/validate -date 2024-04-26 -sqlite data/refined.db \
//	  -prices internal/pipeline/testdata/price_info_2024-04-26.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/spot-price-refiner/internal/adapter/influx"
	"github.com/couchcryptid/spot-price-refiner/internal/adapter/sqlite"
	"github.com/couchcryptid/spot-price-refiner/internal/config"
	"github.com/couchcryptid/spot-price-refiner/internal/domain"
	"github.com/couchcryptid/spot-price-refiner/internal/pipeline"
)

const floatTolerance = 1e-9

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
	date := flag.String("date", "", "date to validate (YYYY-MM-DD)")
	sqlitePath := flag.String("sqlite", "", "path to the SQLite mirror")
	pricesPath := flag.String("prices", "", "JSON fixture of {hour, price}; InfluxDB is queried when empty")
	flag.Parse()

	if *date == "" || *sqlitePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(os.Stdout, *date, *sqlitePath, *pricesPath); code != 0 {
		os.Exit(code)
	}
}

func run(out io.Writer, date, sqlitePath, pricesPath string) int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fmt.Fprintf(out, "=== Refined Data Validation: %s ===\n\n", date)

	series, err := loadPrices(ctx, date, pricesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load prices: %v\n", err)
		return 1
	}

	recorder, err := sqlite.Open(sqlitePath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open sqlite mirror: %v\n", err)
		return 1
	}
	defer recorder.Close()

	rows, err := recorder.Records(ctx, date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read refined rows: %v\n", err)
		return 1
	}

	phases := validate(series, rows)
	if report(out, phases, len(series), len(rows)) {
		return 0
	}
	return 1
}

func validate(series domain.PriceSeries, rows []domain.ClassificationRecord) []*phase {
	return []*phase{
		validateSeries(series),
		validateCoverage(series, rows),
		validateRecomputation(series, rows),
		validateInvariants(rows),
	}
}

// report prints the phase summary and details; it returns true if every phase passed.
func report(out io.Writer, phases []*phase, priceCount, rowCount int) bool {
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintf(out, "\nHours: %d priced, %d refined rows\n", priceCount, rowCount)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return true
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return false
}

// ── Data loading ──

func loadPrices(ctx context.Context, date, path string) (domain.PriceSeries, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var series domain.PriceSeries
		if err := json.Unmarshal(data, &series); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return series, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	store, err := influx.NewStore(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.FetchPrices(ctx, date)
}

// ── Phases ──

func validateSeries(series domain.PriceSeries) *phase {
	p := &phase{name: "Price series integrity"}
	if len(series) == 0 {
		p.errorf("no prices")
		return p
	}
	seen := map[int]bool{}
	for _, hp := range series {
		if hp.Hour < 0 || hp.Hour >= domain.HoursPerDay {
			p.errorf("hour %d outside 0-%d", hp.Hour, domain.HoursPerDay-1)
		}
		if seen[hp.Hour] {
			p.errorf("duplicate hour %d", hp.Hour)
		}
		seen[hp.Hour] = true
		if math.IsNaN(hp.Price) || math.IsInf(hp.Price, 0) {
			p.errorf("hour %d: non-finite price %v", hp.Hour, hp.Price)
		}
	}
	if len(series) != domain.HoursPerDay {
		p.errorf("partial day: %d of %d hours priced", len(series), domain.HoursPerDay)
	}
	return p
}

func validateCoverage(series domain.PriceSeries, rows []domain.ClassificationRecord) *phase {
	p := &phase{name: "Refined row coverage"}
	refined := map[int]bool{}
	for _, r := range rows {
		refined[r.Hour] = true
		if !series.Contains(r.Hour) {
			p.errorf("hour %d refined but not priced", r.Hour)
		}
	}
	for _, h := range series.Hours() {
		if !refined[h] {
			p.errorf("hour %d priced but not refined", h)
		}
	}
	return p
}

func validateRecomputation(series domain.PriceSeries, rows []domain.ClassificationRecord) *phase {
	p := &phase{name: "Refined values match recomputation"}
	for _, row := range rows {
		want, err := pipeline.Classify(series, row.Hour, row.Timestamp)
		if err != nil {
			p.errorf("hour %d: recompute: %v", row.Hour, err)
			continue
		}
		compareRecords(p, want, row)
	}
	return p
}

func compareRecords(p *phase, want, got domain.ClassificationRecord) {
	h := got.Hour
	floats := []struct {
		field     string
		want, got float64
	}{
		{"pris_snitt_24", want.Average, got.Average},
		{"pris_time", want.Price, got.Price},
		{"pris_forhold_24", want.Ratio, got.Ratio},
	}
	for _, f := range floats {
		if !floatEq(f.want, f.got) {
			p.errorf("hour %d %s: want %v, got %v", h, f.field, f.want, f.got)
		}
	}
	if want.MaxHour != got.MaxHour {
		p.errorf("hour %d pris_max: want %d, got %d", h, want.MaxHour, got.MaxHour)
	}
	if want.MinHour != got.MinHour {
		p.errorf("hour %d pris_min: want %d, got %d", h, want.MinHour, got.MinHour)
	}

	wantFlags, gotFlags := flags(want), flags(got)
	for name, w := range wantFlags {
		if gotFlags[name] != w {
			p.errorf("hour %d %s: want %t, got %t", h, name, w, gotFlags[name])
		}
	}
}

func validateInvariants(rows []domain.ClassificationRecord) *phase {
	p := &phase{name: "Classification invariants"}
	counts := map[string]int{}
	for _, r := range rows {
		bands := 0
		for name, set := range flags(r) {
			if set {
				counts[name]++
			}
		}
		for _, b := range []bool{r.Below60, r.From60To90, r.From90To115, r.From115To140, r.Above140} {
			if b {
				bands++
			}
		}
		if bands > 1 {
			p.errorf("hour %d in %d threshold bands", r.Hour, bands)
		}
		if r.MaxHour != rows[0].MaxHour || r.MinHour != rows[0].MinHour {
			p.errorf("hour %d: daily max/min differ from hour %d", r.Hour, rows[0].Hour)
		}
	}

	limits := map[string]int{
		"in_0_6_high":   domain.QuarterHighCount,
		"in_6_12_high":  domain.QuarterHighCount,
		"in_12_18_high": domain.QuarterHighCount,
		"in_18_24_high": domain.QuarterHighCount,
		"in_6_l_8":      domain.ShoulderBandCount - domain.ShoulderPeakCount,
		"i8h_low":       domain.DailyLowCount,
	}
	for name, limit := range limits {
		if counts[name] > limit {
			p.errorf("%s set on %d hours, limit %d", name, counts[name], limit)
		}
	}
	return p
}

func flags(r domain.ClassificationRecord) map[string]bool {
	return map[string]bool{
		"in_6_l_8":      r.ShoulderLowBand,
		"in_0_6_high":   r.HighNight,
		"in_6_12_high":  r.HighMorning,
		"in_12_18_high": r.HighAfternoon,
		"in_18_24_high": r.HighEvening,
		"t0_60":         r.Below60,
		"t60_90":        r.From60To90,
		"t90_115":       r.From90To115,
		"t115_140":      r.From115To140,
		"t140_999":      r.Above140,
		"i8h_low":       r.DailyLowBand,
	}
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) <= floatTolerance
}
