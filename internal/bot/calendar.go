package bot

import (
	"time"

	"github.com/spec-kit/support-chat/internal/config"
)

// Calendar computes support-agent availability from a fixed weekly schedule
// evaluated in a fixed named time zone, independent of the caller's clock.
type Calendar struct {
	loc          *time.Location
	weekdayOpen  int
	weekdayClose int
	weekendOpen  int
	weekendClose int
	sundayClosed bool
}

// NewCalendar builds the calendar, loading the configured zone.
func NewCalendar(cfg config.CalendarConfig) (*Calendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return &Calendar{
		loc:          loc,
		weekdayOpen:  cfg.WeekdayOpenHour,
		weekdayClose: cfg.WeekdayCloseHour,
		weekendOpen:  cfg.WeekendOpenHour,
		weekendClose: cfg.WeekendCloseHour,
		sundayClosed: cfg.SundayClosed,
	}, nil
}

// IsOnline reports whether agents are within working hours at the given
// instant.
func (c *Calendar) IsOnline(now time.Time) bool {
	local := now.In(c.loc)
	hour := local.Hour()
	switch local.Weekday() {
	case time.Sunday:
		if c.sundayClosed {
			return false
		}
		return hour >= c.weekendOpen && hour < c.weekendClose
	case time.Saturday:
		return hour >= c.weekendOpen && hour < c.weekendClose
	default:
		return hour >= c.weekdayOpen && hour < c.weekdayClose
	}
}
