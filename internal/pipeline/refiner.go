package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/spot-price-refiner/internal/domain"
	"github.com/couchcryptid/spot-price-refiner/internal/observability"
)

// Refiner turns a day's prices into refined records, one hour at a time.
type Refiner struct {
	accessor *Accessor
	sink     RecordSink
	calendar domain.Calendar
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Refiner that reads through accessor and writes to sink.
func New(accessor *Accessor, sink RecordSink, calendar domain.Calendar, logger *slog.Logger, metrics *observability.Metrics) *Refiner {
	return &Refiner{
		accessor: accessor,
		sink:     sink,
		calendar: calendar,
		logger:   logger,
		metrics:  metrics,
	}
}

// Refine classifies hour of the selected day and writes the record. Nothing
// is written when the fetch or any classification step fails, and a failed
// write is returned without retrying.
func (r *Refiner) Refine(ctx context.Context, hour int, day domain.Day) (domain.ClassificationRecord, error) {
	date, err := r.calendar.Date(day)
	if err != nil {
		return domain.ClassificationRecord{}, err
	}
	return r.refineHour(ctx, date, hour)
}

// RunDay refines all 24 hours of the selected day.
func (r *Refiner) RunDay(ctx context.Context, day domain.Day) (RunReport, error) {
	date, err := r.calendar.Date(day)
	if err != nil {
		return RunReport{}, err
	}
	return r.RunHours(ctx, date, AllHours()), nil
}

// RunHours refines the given hours of a local date concurrently. Every hour
// is an independent task that fetches the series itself; a failing hour is
// logged and recorded in the report without affecting the others.
func (r *Refiner) RunHours(ctx context.Context, date time.Time, hours []int) RunReport {
	start := time.Now()
	r.metrics.RunAttempts.Inc()

	errs := make([]error, len(hours))
	var wg sync.WaitGroup
	for i, hour := range hours {
		wg.Go(func() {
			_, errs[i] = r.refineHour(ctx, date, hour)
		})
	}
	wg.Wait()

	report := RunReport{
		Date:   date.In(r.calendar.Location()).Format(domain.DateLayout),
		Failed: map[int]error{},
	}
	for i, hour := range hours {
		if errs[i] != nil {
			report.Failed[hour] = errs[i]
			continue
		}
		report.Refined = append(report.Refined, hour)
	}

	r.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if report.OK() {
		r.metrics.LastSuccessfulRun.Set(float64(r.calendar.Now().Unix()))
	}
	r.logger.Info("refine run finished",
		"date", report.Date,
		"refined", len(report.Refined),
		"failed", len(report.Failed),
		"duration", time.Since(start),
	)
	return report
}

func (r *Refiner) refineHour(ctx context.Context, date time.Time, hour int) (domain.ClassificationRecord, error) {
	start := time.Now()
	rec, err := r.classifyAndWrite(ctx, date, hour)
	r.metrics.HoursRefined.WithLabelValues(observability.Outcome(err)).Inc()
	r.metrics.RefineDuration.Observe(time.Since(start).Seconds())

	ds := date.In(r.calendar.Location()).Format(domain.DateLayout)
	if err != nil {
		r.logger.Error("refine hour failed", "hour", hour, "date", ds, "error", err)
		return domain.ClassificationRecord{}, err
	}
	r.logger.Debug("hour refined", "hour", hour, "date", ds, "price", rec.Price, "ratio", rec.Ratio)
	return rec, nil
}

func (r *Refiner) classifyAndWrite(ctx context.Context, date time.Time, hour int) (domain.ClassificationRecord, error) {
	hourStart, err := r.calendar.HourStart(date, hour)
	if err != nil {
		return domain.ClassificationRecord{}, err
	}

	series, err := r.accessor.FetchDate(ctx, date)
	if err != nil {
		return domain.ClassificationRecord{}, err
	}

	rec, err := Classify(series, hour, hourStart)
	if err != nil {
		return domain.ClassificationRecord{}, err
	}

	if err := r.sink.WriteRecord(ctx, rec); err != nil {
		if !errors.Is(err, domain.ErrWrite) {
			err = fmt.Errorf("%w: %w", domain.ErrWrite, err)
		}
		return domain.ClassificationRecord{}, fmt.Errorf("write refined %s: %w", rec.Key(), err)
	}
	return rec, nil
}

// AllHours returns 0 through 23.
func AllHours() []int {
	hours := make([]int, domain.HoursPerDay)
	for i := range hours {
		hours[i] = i
	}
	return hours
}

// RunReport is the outcome of one run over a set of hours.
type RunReport struct {
	Date    string
	Refined []int
	Failed  map[int]error
}

// OK reports whether every requested hour was refined.
func (r RunReport) OK() bool {
	return len(r.Failed) == 0
}

// FailedHours returns the failed hours in ascending order.
func (r RunReport) FailedHours() []int {
	return slices.Sorted(maps.Keys(r.Failed))
}

// Err joins the per-hour errors in hour order, or returns nil.
func (r RunReport) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, h := range r.FailedHours() {
		errs = append(errs, fmt.Errorf("hour %d: %w", h, r.Failed[h]))
	}
	return errors.Join(errs...)
}
