package pipeline_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/spot-price-refiner/internal/domain"
	"github.com/couchcryptid/spot-price-refiner/internal/pipeline"
)

var hourStart = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time {
	return hourStart.Add(time.Duration(hour) * time.Hour)
}

func decreasingDay() domain.PriceSeries {
	series := make(domain.PriceSeries, 0, domain.HoursPerDay)
	for h := range domain.HoursPerDay {
		series = append(series, domain.HourPrice{Hour: h, Price: float64(100 - h)})
	}
	return series
}

func TestClassify_ShoulderLowBand(t *testing.T) {
	series := domain.PriceSeries{
		{Hour: 0, Price: 9}, {Hour: 1, Price: 8}, {Hour: 2, Price: 7}, {Hour: 3, Price: 6},
		{Hour: 4, Price: 5}, {Hour: 5, Price: 4}, {Hour: 6, Price: 3}, {Hour: 7, Price: 2},
	}

	for hour := range 8 {
		rec, err := pipeline.Classify(series, hour, at(hour))
		require.NoError(t, err)
		assert.Equal(t, hour >= 2, rec.ShoulderLowBand, "hour %d", hour)
	}
}

func TestClassify_ShoulderLowBandIncludesHourEight(t *testing.T) {
	series := domain.PriceSeries{
		{Hour: 0, Price: 9}, {Hour: 1, Price: 8}, {Hour: 2, Price: 7}, {Hour: 3, Price: 6},
		{Hour: 4, Price: 5}, {Hour: 5, Price: 4}, {Hour: 6, Price: 3}, {Hour: 7, Price: 2},
		{Hour: 8, Price: 100},
	}

	for hour := range 9 {
		rec, err := pipeline.Classify(series, hour, at(hour))
		require.NoError(t, err)
		assert.Equal(t, hour >= 1 && hour <= 6, rec.ShoulderLowBand, "hour %d", hour)
	}
}

func TestClassify_ZeroAverage(t *testing.T) {
	series := make(domain.PriceSeries, 0, domain.HoursPerDay)
	for h := range domain.HoursPerDay {
		series = append(series, domain.HourPrice{Hour: h, Price: 0})
	}

	rec, err := pipeline.Classify(series, 5, at(5))
	require.ErrorIs(t, err, domain.ErrZeroAverage)
	assert.Contains(t, err.Error(), "ratio")
	assert.Equal(t, domain.ClassificationRecord{}, rec)
}

func TestClassify_DecreasingDay(t *testing.T) {
	series := decreasingDay()

	first, err := pipeline.Classify(series, 0, at(0))
	require.NoError(t, err)
	assert.Equal(t, 0, first.MaxHour)
	assert.Equal(t, 23, first.MinHour)
	assert.InDelta(t, 88.5, first.Average, 1e-9)
	assert.InDelta(t, 100.0, first.Price, 1e-9)
	assert.InDelta(t, 100.0/88.5, first.Ratio, 1e-9)
	assert.True(t, first.HighNight)
	assert.False(t, first.DailyLowBand)
	assert.False(t, first.ShoulderLowBand)

	last, err := pipeline.Classify(series, 23, at(23))
	require.NoError(t, err)
	assert.True(t, last.DailyLowBand)
	assert.False(t, last.HighEvening)
	assert.False(t, last.HighNight)
	assert.Equal(t, "2024-04-26", last.Date)
	assert.Equal(t, 23, last.Hour)
	assert.True(t, last.Timestamp.Equal(at(23)))
}

func TestClassify_QuarterHighFlags(t *testing.T) {
	series := decreasingDay()

	tests := []struct {
		hour  int
		flags [4]bool
	}{
		{hour: 2, flags: [4]bool{true, false, false, false}},
		{hour: 3, flags: [4]bool{false, false, false, false}},
		{hour: 6, flags: [4]bool{false, true, false, false}},
		{hour: 14, flags: [4]bool{false, false, true, false}},
		{hour: 20, flags: [4]bool{false, false, false, true}},
		{hour: 21, flags: [4]bool{false, false, false, false}},
	}

	for _, tt := range tests {
		rec, err := pipeline.Classify(series, tt.hour, at(tt.hour))
		require.NoError(t, err)
		got := [4]bool{rec.HighNight, rec.HighMorning, rec.HighAfternoon, rec.HighEvening}
		assert.Equal(t, tt.flags, got, "hour %d", tt.hour)
	}
}

func TestClassify_ThresholdFlags(t *testing.T) {
	series := domain.PriceSeries{
		{Hour: 0, Price: 50},
		{Hour: 1, Price: 100},
		{Hour: 2, Price: 150},
	}

	low, err := pipeline.Classify(series, 0, at(0))
	require.NoError(t, err)
	assert.True(t, low.Below60)
	assert.False(t, low.From60To90)

	mid, err := pipeline.Classify(series, 1, at(1))
	require.NoError(t, err)
	assert.True(t, mid.From90To115)
	assert.False(t, mid.Below60)
	assert.False(t, mid.Above140)

	high, err := pipeline.Classify(series, 2, at(2))
	require.NoError(t, err)
	assert.True(t, high.Above140)
	assert.False(t, high.From115To140)
}

func TestClassify_Deterministic(t *testing.T) {
	series := loadFixture(t)

	want, err := pipeline.Classify(series, 8, at(8))
	require.NoError(t, err)

	for range 50 {
		got, err := pipeline.Classify(series, 8, at(8))
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("classification changed between runs (-want +got):\n%s", diff)
		}
	}
}

func TestClassify_HourNotFound(t *testing.T) {
	series := domain.PriceSeries{{Hour: 0, Price: 1}, {Hour: 1, Price: 2}}

	_, err := pipeline.Classify(series, 5, at(5))
	require.ErrorIs(t, err, domain.ErrHourNotFound)
	assert.ErrorIs(t, err, domain.ErrLookup)
}

func TestClassify_EmptySeriesReportsFirstFailure(t *testing.T) {
	_, err := pipeline.Classify(nil, 0, at(0))
	require.ErrorIs(t, err, domain.ErrEmptyResult)
	assert.NotErrorIs(t, err, domain.ErrHourNotFound)
	assert.Contains(t, err.Error(), "average")
}

func TestClassify_FixtureDay(t *testing.T) {
	series := loadFixture(t)

	var (
		quarterHighs [4]int
		shoulder     int
		dailyLow     int
		records      []domain.ClassificationRecord
	)
	for hour := range domain.HoursPerDay {
		rec, err := pipeline.Classify(series, hour, at(hour))
		require.NoError(t, err)
		records = append(records, rec)

		for i, flag := range []bool{rec.HighNight, rec.HighMorning, rec.HighAfternoon, rec.HighEvening} {
			if flag {
				quarterHighs[i]++
			}
		}
		if rec.ShoulderLowBand {
			shoulder++
		}
		if rec.DailyLowBand {
			dailyLow++
		}

		bands := 0
		for _, b := range []bool{rec.Below60, rec.From60To90, rec.From90To115, rec.From115To140, rec.Above140} {
			if b {
				bands++
			}
		}
		assert.LessOrEqual(t, bands, 1, "hour %d sits in more than one band", hour)
	}

	assert.Equal(t, [4]int{3, 3, 3, 3}, quarterHighs)
	assert.Equal(t, 6, shoulder)
	assert.Equal(t, 8, dailyLow)

	for _, rec := range records {
		assert.Equal(t, 18, rec.MaxHour)
		assert.Equal(t, 3, rec.MinHour)
		assert.InDelta(t, rec.Price/rec.Average, rec.Ratio, 1e-12)
	}

	// Hour 18 is 1.2245 against an average near 0.82, so above 140%.
	assert.True(t, records[18].Above140)
	// Hour 3 is the cheapest hour, around 70% of the average.
	assert.True(t, records[3].From60To90)
}

func loadFixture(t *testing.T) domain.PriceSeries {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "price_info_2024-04-26.json"))
	require.NoError(t, err)

	var series domain.PriceSeries
	require.NoError(t, json.Unmarshal(data, &series))
	require.Len(t, series, domain.HoursPerDay)
	return series
}
