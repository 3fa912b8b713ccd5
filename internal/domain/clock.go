package domain

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Calendar resolves Today/Tomorrow and hour start times in a fixed local
// zone. Tests inject a fake clock for deterministic dates.
type Calendar struct {
	clock    clockwork.Clock
	location *time.Location
}

// NewCalendar creates a Calendar. A nil clock uses real time and a nil
// location uses UTC.
func NewCalendar(c clockwork.Clock, loc *time.Location) Calendar {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{clock: c, location: loc}
}

// Location returns the zone dates are resolved in.
func (c Calendar) Location() *time.Location {
	return c.location
}

// Now returns the current time in the calendar's zone.
func (c Calendar) Now() time.Time {
	return c.clock.Now().In(c.location)
}

// Date returns local midnight of the calendar date selected by day.
func (c Calendar) Date(day Day) (time.Time, error) {
	offset, err := day.offset()
	if err != nil {
		return time.Time{}, err
	}
	now := c.clock.Now().In(c.location)
	// time.Date normalizes day overflow across month and year boundaries.
	return time.Date(now.Year(), now.Month(), now.Day()+offset, 0, 0, 0, 0, c.location), nil
}

// DateString formats the date selected by day as YYYY-MM-DD.
func (c Calendar) DateString(day Day) (string, error) {
	d, err := c.Date(day)
	if err != nil {
		return "", err
	}
	return d.Format(DateLayout), nil
}

// HourStart returns the start of hour on the local date. On DST transition
// days the wall-clock hour is normalized by time.Date.
func (c Calendar) HourStart(date time.Time, hour int) (time.Time, error) {
	if hour < 0 || hour >= HoursPerDay {
		return time.Time{}, fmt.Errorf("%w: hour %d outside 0-%d", ErrNormalization, hour, HoursPerDay-1)
	}
	local := date.In(c.location)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, c.location), nil
}

// ParseDate validates a YYYY-MM-DD string and returns local midnight.
func (c Calendar) ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, c.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrNormalization, err)
	}
	return d, nil
}
