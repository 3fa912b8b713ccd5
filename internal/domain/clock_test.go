package domain

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestCalendar_DateUsesLocalZone(t *testing.T) {
	oslo := mustLocation(t, "Europe/Oslo")
	// 23:30 UTC on Apr 25 is already Apr 26 in Oslo.
	fake := clockwork.NewFakeClockAt(time.Date(2024, time.April, 25, 23, 30, 0, 0, time.UTC))
	cal := NewCalendar(fake, oslo)

	today, err := cal.DateString(Today)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-26", today)

	tomorrow, err := cal.DateString(Tomorrow)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-27", tomorrow)

	utc := NewCalendar(fake, nil)
	today, err = utc.DateString(Today)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-25", today)
}

func TestCalendar_TomorrowCrossesYear(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, time.December, 31, 12, 0, 0, 0, time.UTC))
	cal := NewCalendar(fake, time.UTC)

	tomorrow, err := cal.DateString(Tomorrow)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", tomorrow)
}

func TestCalendar_UnknownDay(t *testing.T) {
	cal := NewCalendar(clockwork.NewFakeClock(), time.UTC)
	_, err := cal.Date(Day(7))
	require.ErrorIs(t, err, ErrNormalization)
}

func TestCalendar_HourStart(t *testing.T) {
	oslo := mustLocation(t, "Europe/Oslo")
	cal := NewCalendar(clockwork.NewFakeClock(), oslo)
	date, err := cal.ParseDate("2024-04-26")
	require.NoError(t, err)

	start, err := cal.HourStart(date, 15)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.April, 26, 13, 0, 0, 0, time.UTC), start.UTC())

	_, err = cal.HourStart(date, 24)
	require.ErrorIs(t, err, ErrNormalization)
}

func TestCalendar_ParseDateRejectsGarbage(t *testing.T) {
	cal := NewCalendar(nil, nil)
	_, err := cal.ParseDate("2024-04-26' OR 1=1")
	require.ErrorIs(t, err, ErrNormalization)
}

func TestParseDay(t *testing.T) {
	tests := []struct {
		in       string
		expected Day
		wantErr  bool
	}{
		{"today", Today, false},
		{"Tomorrow", Tomorrow, false},
		{"", Today, false},
		{"yesterday", Today, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			day, err := ParseDay(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNormalization)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, day)
			assert.Equal(t, tt.expected.String(), day.String())
		})
	}
}
