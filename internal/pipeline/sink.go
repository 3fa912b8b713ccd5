package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/spot-price-refiner/internal/domain"
	"github.com/couchcryptid/spot-price-refiner/internal/observability"
)

// NamedSink labels a RecordSink for logs and the sink_writes_total metric.
type NamedSink struct {
	Name string
	Sink RecordSink
}

// FanOut writes each record to the primary sink and then to every mirror.
// Mirrors are skipped when the primary write fails. It implements RecordSink.
type FanOut struct {
	primary NamedSink
	mirrors []NamedSink
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFanOut creates a FanOut. With no mirrors it behaves like primary alone
// apart from metrics.
func NewFanOut(primary NamedSink, mirrors []NamedSink, logger *slog.Logger, metrics *observability.Metrics) *FanOut {
	return &FanOut{primary: primary, mirrors: mirrors, logger: logger, metrics: metrics}
}

// WriteRecord returns the primary's error, or every mirror error joined.
// Every returned error matches domain.ErrWrite.
func (f *FanOut) WriteRecord(ctx context.Context, rec domain.ClassificationRecord) error {
	if err := f.write(ctx, f.primary, rec); err != nil {
		return err
	}

	var errs []error
	for _, m := range f.mirrors {
		if err := f.write(ctx, m, rec); err != nil {
			f.logger.Warn("mirror write failed", "sink", m.Name, "date", rec.Date, "hour", rec.Hour, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FanOut) write(ctx context.Context, s NamedSink, rec domain.ClassificationRecord) error {
	err := s.Sink.WriteRecord(ctx, rec)
	f.metrics.SinkWrites.WithLabelValues(s.Name, observability.Outcome(err)).Inc()
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrWrite) {
		return fmt.Errorf("%s: %w", s.Name, err)
	}
	return fmt.Errorf("%s: %w: %w", s.Name, domain.ErrWrite, err)
}
