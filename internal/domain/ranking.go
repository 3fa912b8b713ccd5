package domain

import (
	"fmt"
	"slices"
)

// Window is an inclusive hour range: Start <= hour <= Stop.
type Window struct {
	Start int
	Stop  int
}

// FullDay covers every hour of a day.
var FullDay = Window{Start: 0, Stop: HoursPerDay - 1}

func (w Window) contains(hour int) bool {
	return w.Start <= hour && hour <= w.Stop
}

func (w Window) validate() error {
	if w.Start > w.Stop {
		return fmt.Errorf("%w: start %d after stop %d", ErrInvalidWindow, w.Start, w.Stop)
	}
	return nil
}

// RankTop returns up to count hours of the window ordered from highest to
// lowest price.
func RankTop(series PriceSeries, count int, w Window) ([]HourPrice, error) {
	return rank(series, count, w, descending)
}

// RankBottom returns up to count hours of the window ordered from lowest to
// highest price.
func RankBottom(series PriceSeries, count int, w Window) ([]HourPrice, error) {
	return rank(series, count, w, ascending)
}

// IsHourInTop reports whether hour is among the count highest-priced hours
// of the window.
func IsHourInTop(series PriceSeries, hour, count int, w Window) (bool, error) {
	ranked, err := RankTop(series, count, w)
	if err != nil {
		return false, err
	}
	return containsHour(ranked, hour), nil
}

// IsHourInBottom reports whether hour is among the count lowest-priced hours
// of the window.
func IsHourInBottom(series PriceSeries, hour, count int, w Window) (bool, error) {
	ranked, err := RankBottom(series, count, w)
	if err != nil {
		return false, err
	}
	return containsHour(ranked, hour), nil
}

// MaxHour returns the highest-priced hour of the day.
func MaxHour(series PriceSeries) (HourPrice, error) {
	return first(RankTop(series, 1, FullDay))
}

// MinHour returns the lowest-priced hour of the day.
func MinHour(series PriceSeries) (HourPrice, error) {
	return first(RankBottom(series, 1, FullDay))
}

func rank(series PriceSeries, count int, w Window, cmp func(a, b HourPrice) int) ([]HourPrice, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative count %d", ErrInvalidWindow, count)
	}

	filtered := make([]HourPrice, 0, len(series))
	for _, hp := range series {
		if w.contains(hp.Hour) {
			filtered = append(filtered, hp)
		}
	}
	slices.SortStableFunc(filtered, cmp)

	if count < len(filtered) {
		filtered = filtered[:count]
	}
	return filtered, nil
}

// descending and ascending order by price only. A NaN on either side
// compares as equal, so it keeps its filtered position relative to its
// neighbours instead of failing the sort.
func descending(a, b HourPrice) int {
	switch {
	case a.Price > b.Price:
		return -1
	case a.Price < b.Price:
		return 1
	default:
		return 0
	}
}

func ascending(a, b HourPrice) int {
	return descending(b, a)
}

func containsHour(ranked []HourPrice, hour int) bool {
	for _, hp := range ranked {
		if hp.Hour == hour {
			return true
		}
	}
	return false
}

func first(ranked []HourPrice, err error) (HourPrice, error) {
	if err != nil {
		return HourPrice{}, err
	}
	if len(ranked) == 0 {
		return HourPrice{}, ErrEmptyWindow
	}
	return ranked[0], nil
}
