package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-chat/internal/config"
)

func newYorkCalendar(t *testing.T) *Calendar {
	t.Helper()
	cal, err := NewCalendar(config.CalendarConfig{
		Timezone:         "America/New_York",
		WeekdayOpenHour:  9,
		WeekdayCloseHour: 18,
		WeekendOpenHour:  10,
		WeekendCloseHour: 15,
		SundayClosed:     true,
	})
	require.NoError(t, err)
	return cal
}

func TestCalendarEvaluatesInFixedZone(t *testing.T) {
	cal := newYorkCalendar(t)

	// 14:00 UTC on a June Wednesday is 10:00 in New York: open.
	wednesday := time.Date(2025, 6, 4, 14, 0, 0, 0, time.UTC)
	assert.True(t, cal.IsOnline(wednesday))

	// 02:00 UTC the same day is 22:00 the previous evening: closed,
	// regardless of the caller's clock.
	lateNight := time.Date(2025, 6, 4, 2, 0, 0, 0, time.UTC)
	assert.False(t, cal.IsOnline(lateNight))
}

func TestCalendarWeekendHours(t *testing.T) {
	cal := newYorkCalendar(t)

	// Saturday 11:00 New York: inside the shorter weekend window.
	saturday := time.Date(2025, 6, 7, 15, 0, 0, 0, time.UTC)
	assert.True(t, cal.IsOnline(saturday))

	// Saturday 16:00 New York: past weekend close.
	saturdayLate := time.Date(2025, 6, 7, 20, 0, 0, 0, time.UTC)
	assert.False(t, cal.IsOnline(saturdayLate))
}

func TestCalendarSundayClosed(t *testing.T) {
	cal := newYorkCalendar(t)

	// Sunday noon New York would be inside weekend hours, but Sundays are
	// off entirely.
	sunday := time.Date(2025, 6, 8, 16, 0, 0, 0, time.UTC)
	assert.False(t, cal.IsOnline(sunday))
}

func TestCalendarRejectsUnknownZone(t *testing.T) {
	_, err := NewCalendar(config.CalendarConfig{Timezone: "Nowhere/Invalid"})
	require.Error(t, err)
}
