package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/spot-price-refiner/internal/domain"
	"github.com/couchcryptid/spot-price-refiner/internal/observability"
	"github.com/couchcryptid/spot-price-refiner/internal/pipeline"
)

// ErrRunInProgress is returned by RunNow while another run holds the scheduler.
var ErrRunInProgress = errors.New("a refine run is already in progress")

// HourRunner refines a set of hours for a resolved local date.
type HourRunner interface {
	RunHours(ctx context.Context, date time.Time, hours []int) pipeline.RunReport
}

// Options configure the daily run.
type Options struct {
	// Spec is a six-field cron expression evaluated in the calendar's zone.
	Spec       string
	Day        domain.Day
	Retries    int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// Scheduler triggers the daily refine run on a cron schedule and retries
// failed hours with exponential backoff. At most one run is active at a time.
type Scheduler struct {
	cron     *cron.Cron
	runner   HourRunner
	calendar domain.Calendar
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics

	// ctx is the parent of every scheduled run; cancelling it aborts retries.
	ctx context.Context
	mu  sync.Mutex
}

// New creates a Scheduler. Register must be called before Start.
func New(ctx context.Context, runner HourRunner, calendar domain.Calendar, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(calendar.Location()),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		runner:   runner,
		calendar: calendar,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
		ctx:      ctx,
	}
}

// Register adds the daily run to the cron table.
func (s *Scheduler) Register() error {
	if _, err := s.cron.AddFunc(s.opts.Spec, s.scheduledRun); err != nil {
		return fmt.Errorf("register refine run %q: %w", s.opts.Spec, err)
	}
	return nil
}

// Start starts the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.metrics.SchedulerRunning.Set(1)
	s.logger.Info("scheduler started", "spec", s.opts.Spec, "day", s.opts.Day.String(), "location", s.calendar.Location().String())
}

// Stop stops the cron scheduler and waits for a running job to return or
// for ctx to expire, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.metrics.SchedulerRunning.Set(0)
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Next returns the next activation time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunNow performs a single attempt over all hours of day without retries.
// It fails with ErrRunInProgress instead of waiting for a concurrent run.
func (s *Scheduler) RunNow(ctx context.Context, day domain.Day) (pipeline.RunReport, error) {
	if !s.mu.TryLock() {
		return pipeline.RunReport{}, ErrRunInProgress
	}
	defer s.mu.Unlock()

	date, err := s.calendar.Date(day)
	if err != nil {
		return pipeline.RunReport{}, err
	}
	report := s.runner.RunHours(ctx, date, pipeline.AllHours())
	return report, report.Err()
}

// RunWithRetry refines every hour of day, then re-runs only the failed hours
// up to Retries more times. The date is resolved once so retries that cross
// midnight still target the same day. The returned report accumulates the
// refined hours of all attempts and the failures of the last one.
func (s *Scheduler) RunWithRetry(ctx context.Context, day domain.Day) (pipeline.RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	date, err := s.calendar.Date(day)
	if err != nil {
		return pipeline.RunReport{}, err
	}

	hours := pipeline.AllHours()
	backoff := s.opts.Backoff
	var refined []int

	for attempt := 0; ; attempt++ {
		report := s.runner.RunHours(ctx, date, hours)
		refined = append(refined, report.Refined...)
		report.Refined = refined

		if report.OK() {
			return report, nil
		}
		if attempt >= s.opts.Retries {
			s.logger.Error("refine run gave up", "date", report.Date, "attempts", attempt+1, "failed_hours", report.FailedHours())
			return report, report.Err()
		}

		hours = report.FailedHours()
		s.logger.Warn("retrying failed hours",
			"date", report.Date,
			"attempt", attempt+1,
			"failed_hours", hours,
			"backoff", backoff,
		)
		if !sleepWithContext(ctx, backoff) {
			return report, fmt.Errorf("refine run for %s cancelled: %w", report.Date, ctx.Err())
		}
		backoff = nextBackoff(backoff, s.opts.MaxBackoff)
	}
}

func (s *Scheduler) scheduledRun() {
	s.logger.Info("scheduled refine run starting", "day", s.opts.Day.String())
	if _, err := s.RunWithRetry(s.ctx, s.opts.Day); err != nil {
		s.logger.Error("scheduled refine run failed", "error", err)
	}
}
