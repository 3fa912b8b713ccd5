package domain

// Band is a relative price band expressed against the daily average.
// Bounds above 1 are percentages, bounds at or below 1 are fractions.
type Band struct {
	Low  float64
	High float64
}

// NormalizeThreshold converts a percentage (> 1) into a fraction. Fractions
// pass through unchanged.
func NormalizeThreshold(v float64) float64 {
	if v > 1.0 {
		return v / 100.0
	}
	return v
}

// RelativeThresholdWindow returns the hours, in series order, whose price is
// strictly between low*average and high*average. A price equal to either
// bound is excluded.
func RelativeThresholdWindow(series PriceSeries, low, high float64) ([]HourPrice, error) {
	avg, err := Average(series)
	if err != nil {
		return nil, err
	}
	lowVal := NormalizeThreshold(low) * avg
	highVal := NormalizeThreshold(high) * avg

	var inside []HourPrice
	for _, hp := range series {
		if lowVal < hp.Price && hp.Price < highVal {
			inside = append(inside, hp)
		}
	}
	return inside, nil
}

// IsHourWithinThreshold reports whether hour belongs to the normalized band.
func IsHourWithinThreshold(series PriceSeries, hour int, low, high float64) (bool, error) {
	inside, err := RelativeThresholdWindow(series, low, high)
	if err != nil {
		return false, err
	}
	return containsHour(inside, hour), nil
}

// Within is IsHourWithinThreshold for the band's bounds.
func (b Band) Within(series PriceSeries, hour int) (bool, error) {
	return IsHourWithinThreshold(series, hour, b.Low, b.High)
}
