package domain

import "fmt"

// Average is the arithmetic mean over the prices actually present. A partial
// day is divided by its own length, never by 24.
func Average(series PriceSeries) (float64, error) {
	if len(series) == 0 {
		return 0, fmt.Errorf("average: %w", ErrEmptyResult)
	}
	var sum float64
	for _, hp := range series {
		sum += hp.Price
	}
	return sum / float64(len(series)), nil
}

// PriceAt returns the price of hour or ErrHourNotFound.
func PriceAt(series PriceSeries, hour int) (float64, error) {
	price, ok := series.Lookup(hour)
	if !ok {
		return 0, fmt.Errorf("price at hour %d: %w", hour, ErrHourNotFound)
	}
	return price, nil
}

// Ratio is the price at hour divided by the daily average. A day whose prices
// cancel out to a zero average has no ratio and fails with ErrZeroAverage.
func Ratio(series PriceSeries, hour int) (float64, error) {
	price, err := PriceAt(series, hour)
	if err != nil {
		return 0, err
	}
	avg, err := Average(series)
	if err != nil {
		return 0, err
	}
	if avg == 0 {
		return 0, fmt.Errorf("ratio at hour %d: %w", hour, ErrZeroAverage)
	}
	return price / avg, nil
}
