package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/spot-price-refiner/internal/domain"
)

// Classify builds the refined record for hour from a fetched series. start
// is the hour's local start time and supplies the timestamp and date tag.
//
// The sub-computations run concurrently against the same read-only series.
// Each one writes a distinct field of the record and its own error slot;
// after all of them finish the slots are checked in declaration order and
// the first error aborts the classification.
func Classify(series domain.PriceSeries, hour int, start time.Time) (domain.ClassificationRecord, error) {
	rec := domain.ClassificationRecord{
		Timestamp: start,
		Hour:      hour,
		Date:      start.Format(domain.DateLayout),
	}

	var maxHour, minHour domain.HourPrice

	tasks := []struct {
		name string
		run  func() error
	}{
		{"average", func() (err error) {
			rec.Average, err = domain.Average(series)
			return err
		}},
		{"price", func() (err error) {
			rec.Price, err = domain.PriceAt(series, hour)
			return err
		}},
		{"ratio", func() (err error) {
			rec.Ratio, err = domain.Ratio(series, hour)
			return err
		}},
		{"shoulder low band", func() (err error) {
			rec.ShoulderLowBand, err = domain.InShoulderLowBand(series, hour)
			return err
		}},
		{"night high", quarterHigh(series, hour, domain.QuarterNight, &rec.HighNight)},
		{"morning high", quarterHigh(series, hour, domain.QuarterMorning, &rec.HighMorning)},
		{"afternoon high", quarterHigh(series, hour, domain.QuarterAfternoon, &rec.HighAfternoon)},
		{"evening high", quarterHigh(series, hour, domain.QuarterEvening, &rec.HighEvening)},
		{"band 0-60", withinBand(series, hour, domain.BandBelow60, &rec.Below60)},
		{"band 60-90", withinBand(series, hour, domain.BandFrom60To90, &rec.From60To90)},
		{"band 90-115", withinBand(series, hour, domain.BandFrom90To115, &rec.From90To115)},
		{"band 115-140", withinBand(series, hour, domain.BandFrom115To140, &rec.From115To140)},
		{"band 140-999", withinBand(series, hour, domain.BandAbove140, &rec.Above140)},
		{"daily low band", func() (err error) {
			rec.DailyLowBand, err = domain.InDailyLowBand(series, hour)
			return err
		}},
		{"max hour", func() (err error) {
			maxHour, err = domain.MaxHour(series)
			return err
		}},
		{"min hour", func() (err error) {
			minHour, err = domain.MinHour(series)
			return err
		}},
	}

	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Go(func() {
			errs[i] = task.run()
		})
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return domain.ClassificationRecord{}, fmt.Errorf("classify hour %d: %s: %w", hour, tasks[i].name, err)
		}
	}

	rec.MaxHour = maxHour.Hour
	rec.MinHour = minHour.Hour
	return rec, nil
}

func quarterHigh(series domain.PriceSeries, hour int, w domain.Window, dst *bool) func() error {
	return func() (err error) {
		*dst, err = domain.IsHourInTop(series, hour, domain.QuarterHighCount, w)
		return err
	}
}

func withinBand(series domain.PriceSeries, hour int, b domain.Band, dst *bool) func() error {
	return func() (err error) {
		*dst, err = b.Within(series, hour)
		return err
	}
}
