package domain

// Windows and bands used to build a refined record.
//
// The quarter-day blocks are half-open ranges [0,6), [6,12), [12,18), [18,24)
// expressed as inclusive windows, so adjacent quarters never share an hour.
// The early-morning block spans hours 0 through 8 inclusive and overlaps the
// morning quarter at 6-8.
var (
	EarlyMorning = Window{Start: 0, Stop: 8}

	QuarterNight     = Window{Start: 0, Stop: 5}
	QuarterMorning   = Window{Start: 6, Stop: 11}
	QuarterAfternoon = Window{Start: 12, Stop: 17}
	QuarterEvening   = Window{Start: 18, Stop: 23}

	BandBelow60      = Band{Low: 0, High: 60}
	BandFrom60To90   = Band{Low: 60, High: 90}
	BandFrom90To115  = Band{Low: 90, High: 115}
	BandFrom115To140 = Band{Low: 115, High: 140}
	BandAbove140     = Band{Low: 140, High: 999}
)

const (
	// ShoulderPeakCount hours at the top of EarlyMorning are excluded from
	// the shoulder band; ShoulderBandCount hours make up the band itself.
	ShoulderPeakCount = 2
	ShoulderBandCount = 8

	QuarterHighCount = 3
	DailyLowCount    = 8
)

// InShoulderLowBand reports whether hour is moderately high but not peak in
// the early-morning block: in its top ShoulderBandCount hours and not in its
// top ShoulderPeakCount.
func InShoulderLowBand(series PriceSeries, hour int) (bool, error) {
	peak, err := IsHourInTop(series, hour, ShoulderPeakCount, EarlyMorning)
	if err != nil {
		return false, err
	}
	band, err := IsHourInTop(series, hour, ShoulderBandCount, EarlyMorning)
	if err != nil {
		return false, err
	}
	return !peak && band, nil
}

// InDailyLowBand reports whether hour is among the DailyLowCount cheapest
// hours of the day. An hour missing from the series is not a match.
func InDailyLowBand(series PriceSeries, hour int) (bool, error) {
	return IsHourInBottom(series, hour, DailyLowCount, FullDay)
}
