package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/spot-price-refiner/internal/domain"
	"github.com/couchcryptid/spot-price-refiner/internal/observability"
)

// Accessor resolves a Day against the calendar and reads that date's prices.
// It never retries or caches; every call is one store query.
type Accessor struct {
	source   PriceSource
	calendar domain.Calendar
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewAccessor creates an Accessor reading from source.
func NewAccessor(source PriceSource, calendar domain.Calendar, logger *slog.Logger, metrics *observability.Metrics) *Accessor {
	return &Accessor{source: source, calendar: calendar, logger: logger, metrics: metrics}
}

// Fetch returns the local date selected by day and its price series.
func (a *Accessor) Fetch(ctx context.Context, day domain.Day) (time.Time, domain.PriceSeries, error) {
	date, err := a.calendar.Date(day)
	if err != nil {
		return time.Time{}, nil, err
	}
	series, err := a.FetchDate(ctx, date)
	return date, series, err
}

// FetchDate returns the price series for an already resolved local date.
func (a *Accessor) FetchDate(ctx context.Context, date time.Time) (domain.PriceSeries, error) {
	ds := date.In(a.calendar.Location()).Format(domain.DateLayout)
	series, err := a.source.FetchPrices(ctx, ds)
	a.metrics.PriceFetches.WithLabelValues(observability.Outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("fetch prices for %s: %w", ds, err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("fetch prices for %s: %w", ds, domain.ErrEmptyResult)
	}
	a.logger.Debug("prices fetched", "date", ds, "hours", len(series))
	return series, nil
}
