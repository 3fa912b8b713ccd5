package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/spot-price-refiner/internal/domain"
	"github.com/couchcryptid/spot-price-refiner/internal/observability"
	"github.com/couchcryptid/spot-price-refiner/internal/pipeline"
)

// --- mocks ---

type mockSource struct {
	series map[string]domain.PriceSeries
	err    error
	calls  atomic.Int64

	mu    sync.Mutex
	dates []string
}

func (m *mockSource) FetchPrices(_ context.Context, date string) (domain.PriceSeries, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.dates = append(m.dates, date)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.series[date], nil
}

type mockSink struct {
	mu        sync.Mutex
	records   map[int]domain.ClassificationRecord
	failHours map[int]bool
	err       error
}

func newMockSink() *mockSink {
	return &mockSink{records: map[int]domain.ClassificationRecord{}, failHours: map[int]bool{}}
}

func (m *mockSink) WriteRecord(_ context.Context, rec domain.ClassificationRecord) error {
	if m.err != nil {
		return m.err
	}
	if m.failHours[rec.Hour] {
		return fmt.Errorf("%w: hour %d rejected", domain.ErrWrite, rec.Hour)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Hour] = rec
	return nil
}

func (m *mockSink) written() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func oslo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Oslo")
	require.NoError(t, err)
	return loc
}

func newTestRefiner(t *testing.T, src pipeline.PriceSource, sink pipeline.RecordSink) (*pipeline.Refiner, *observability.Metrics) {
	t.Helper()
	loc := oslo(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 10, 30, 0, 0, loc))
	cal := domain.NewCalendar(clock, loc)
	metrics := observability.NewMetricsForTesting()
	accessor := pipeline.NewAccessor(src, cal, slog.Default(), metrics)
	return pipeline.New(accessor, sink, cal, slog.Default(), metrics), metrics
}

// --- tests ---

func TestRefiner_Refine_HappyPath(t *testing.T) {
	src := &mockSource{series: map[string]domain.PriceSeries{"2024-04-26": decreasingDay()}}
	sink := newMockSink()
	r, metrics := newTestRefiner(t, src, sink)

	rec, err := r.Refine(context.Background(), 7, domain.Today)
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-04-26"}, src.dates)
	assert.Equal(t, 7, rec.Hour)
	assert.Equal(t, "2024-04-26", rec.Date)
	assert.True(t, rec.Timestamp.Equal(time.Date(2024, time.April, 26, 7, 0, 0, 0, oslo(t))))
	assert.Equal(t, rec, sink.records[7])
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.HoursRefined.WithLabelValues("success")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.PriceFetches.WithLabelValues("success")), 0)
}

func TestRefiner_Refine_Tomorrow(t *testing.T) {
	src := &mockSource{series: map[string]domain.PriceSeries{"2024-04-27": decreasingDay()}}
	r, _ := newTestRefiner(t, src, newMockSink())

	rec, err := r.Refine(context.Background(), 0, domain.Tomorrow)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-04-27"}, src.dates)
	assert.Equal(t, "2024-04-27", rec.Date)
}

func TestRefiner_Refine_QueryErrorWritesNothing(t *testing.T) {
	src := &mockSource{err: fmt.Errorf("%w: connection refused", domain.ErrQuery)}
	sink := newMockSink()
	r, metrics := newTestRefiner(t, src, sink)

	_, err := r.Refine(context.Background(), 3, domain.Today)
	require.ErrorIs(t, err, domain.ErrQuery)
	assert.Zero(t, sink.written())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.HoursRefined.WithLabelValues("error")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.PriceFetches.WithLabelValues("error")), 0)
}

func TestRefiner_Refine_EmptyResult(t *testing.T) {
	src := &mockSource{series: map[string]domain.PriceSeries{}}
	sink := newMockSink()
	r, _ := newTestRefiner(t, src, sink)

	_, err := r.Refine(context.Background(), 3, domain.Today)
	require.ErrorIs(t, err, domain.ErrEmptyResult)
	assert.Zero(t, sink.written())
}

func TestRefiner_Refine_MissingHour(t *testing.T) {
	partial := domain.PriceSeries{{Hour: 0, Price: 10}, {Hour: 1, Price: 20}}
	src := &mockSource{series: map[string]domain.PriceSeries{"2024-04-26": partial}}
	sink := newMockSink()
	r, _ := newTestRefiner(t, src, sink)

	_, err := r.Refine(context.Background(), 12, domain.Today)
	require.ErrorIs(t, err, domain.ErrHourNotFound)
	assert.Zero(t, sink.written())
}

func TestRefiner_Refine_InvalidHourSkipsFetch(t *testing.T) {
	src := &mockSource{}
	r, _ := newTestRefiner(t, src, newMockSink())

	_, err := r.Refine(context.Background(), 24, domain.Today)
	require.ErrorIs(t, err, domain.ErrNormalization)
	assert.Zero(t, src.calls.Load())
}

func TestRefiner_Refine_WriteError(t *testing.T) {
	src := &mockSource{series: map[string]domain.PriceSeries{"2024-04-26": decreasingDay()}}
	sink := newMockSink()
	sink.err = errors.New("influx unavailable")
	r, _ := newTestRefiner(t, src, sink)

	_, err := r.Refine(context.Background(), 5, domain.Today)
	require.ErrorIs(t, err, domain.ErrWrite)
	assert.Contains(t, err.Error(), "influx unavailable")
	assert.Contains(t, err.Error(), "2024-04-26/05")
}

func TestRefiner_RunDay_AllHours(t *testing.T) {
	src := &mockSource{series: map[string]domain.PriceSeries{"2024-04-26": decreasingDay()}}
	sink := newMockSink()
	r, metrics := newTestRefiner(t, src, sink)

	report, err := r.RunDay(context.Background(), domain.Today)
	require.NoError(t, err)

	assert.True(t, report.OK())
	assert.NoError(t, report.Err())
	assert.Equal(t, "2024-04-26", report.Date)
	assert.ElementsMatch(t, pipeline.AllHours(), report.Refined)
	assert.Equal(t, domain.HoursPerDay, sink.written())
	// Each hour task fetches the series for itself.
	assert.EqualValues(t, domain.HoursPerDay, src.calls.Load())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.RunAttempts), 0)
	assert.Positive(t, testutil.ToFloat64(metrics.LastSuccessfulRun))
}

func TestRefiner_RunDay_FailedHoursAreIsolated(t *testing.T) {
	src := &mockSource{series: map[string]domain.PriceSeries{"2024-04-26": decreasingDay()}}
	sink := newMockSink()
	sink.failHours[17] = true
	sink.failHours[3] = true
	r, metrics := newTestRefiner(t, src, sink)

	report, err := r.RunDay(context.Background(), domain.Today)
	require.NoError(t, err)

	assert.False(t, report.OK())
	assert.Equal(t, []int{3, 17}, report.FailedHours())
	assert.Len(t, report.Refined, domain.HoursPerDay-2)
	assert.Equal(t, domain.HoursPerDay-2, sink.written())
	require.ErrorIs(t, report.Err(), domain.ErrWrite)
	assert.Contains(t, report.Err().Error(), "hour 3")
	assert.Zero(t, testutil.ToFloat64(metrics.LastSuccessfulRun))
}

func TestRefiner_RunHours_Subset(t *testing.T) {
	src := &mockSource{series: map[string]domain.PriceSeries{"2024-04-26": decreasingDay()}}
	sink := newMockSink()
	r, _ := newTestRefiner(t, src, sink)

	date := time.Date(2024, time.April, 26, 0, 0, 0, 0, oslo(t))
	report := r.RunHours(context.Background(), date, []int{4, 9})

	assert.True(t, report.OK())
	assert.ElementsMatch(t, []int{4, 9}, report.Refined)
	assert.Equal(t, 2, sink.written())
}

func TestAllHours(t *testing.T) {
	hours := pipeline.AllHours()
	require.Len(t, hours, 24)
	assert.Equal(t, 0, hours[0])
	assert.Equal(t, 23, hours[23])
}
