package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the format of the `date` tag on both price_info and refined rows.
const DateLayout = "2006-01-02"

// HoursPerDay bounds valid hour indices to [0, HoursPerDay).
const HoursPerDay = 24

// HourPrice is a single hour's spot price.
type HourPrice struct {
	Hour  int     `json:"hour"`
	Price float64 `json:"price"`
}

// PriceSeries holds the hourly prices of one calendar day in the order the
// store returned them. It may be unsorted and may have fewer than 24 entries.
// A series is shared read-only once fetched.
type PriceSeries []HourPrice

// Lookup returns the price recorded for hour.
func (s PriceSeries) Lookup(hour int) (float64, bool) {
	for _, hp := range s {
		if hp.Hour == hour {
			return hp.Price, true
		}
	}
	return 0, false
}

// Contains reports whether hour appears in the series.
func (s PriceSeries) Contains(hour int) bool {
	_, ok := s.Lookup(hour)
	return ok
}

// Hours returns the hour indices of the series in series order.
func (s PriceSeries) Hours() []int {
	hours := make([]int, len(s))
	for i, hp := range s {
		hours[i] = hp.Hour
	}
	return hours
}

// Day selects which calendar date's prices to fetch.
type Day int

const (
	Today Day = iota
	Tomorrow
)

func (d Day) String() string {
	switch d {
	case Today:
		return "today"
	case Tomorrow:
		return "tomorrow"
	default:
		return fmt.Sprintf("day(%d)", int(d))
	}
}

// offset is the number of days after the current local date.
func (d Day) offset() (int, error) {
	switch d {
	case Today:
		return 0, nil
	case Tomorrow:
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: unknown day %d", ErrNormalization, int(d))
	}
}

// ParseDay accepts "today" or "tomorrow" (case-insensitive).
func ParseDay(s string) (Day, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "today", "":
		return Today, nil
	case "tomorrow":
		return Tomorrow, nil
	default:
		return Today, fmt.Errorf("%w: unknown day %q", ErrNormalization, s)
	}
}

// ClassificationRecord is the composite "refined" row for one (date, hour).
// JSON names match the field names written to the refined measurement.
type ClassificationRecord struct {
	Timestamp time.Time `json:"time"`
	Hour      int       `json:"hour"`
	Date      string    `json:"date"`

	Average float64 `json:"pris_snitt_24"`
	Price   float64 `json:"pris_time"`
	Ratio   float64 `json:"pris_forhold_24"`
	MaxHour int     `json:"pris_max"`
	MinHour int     `json:"pris_min"`

	// ShoulderLowBand is set for early-morning hours in the top 8 but not
	// the top 2 of the block.
	ShoulderLowBand bool `json:"in_6_l_8"`

	HighNight     bool `json:"in_0_6_high"`
	HighMorning   bool `json:"in_6_12_high"`
	HighAfternoon bool `json:"in_12_18_high"`
	HighEvening   bool `json:"in_18_24_high"`

	Below60      bool `json:"t0_60"`
	From60To90   bool `json:"t60_90"`
	From90To115  bool `json:"t90_115"`
	From115To140 bool `json:"t115_140"`
	Above140     bool `json:"t140_999"`

	DailyLowBand bool `json:"i8h_low"`
}

// Key identifies the record within the refined measurement.
func (r ClassificationRecord) Key() string {
	return fmt.Sprintf("%s/%02d", r.Date, r.Hour)
}
