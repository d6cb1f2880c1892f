package widgetconfig

import (
	"time"
	_ "time/tzdata"

	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
)

const clockLayout = "15:04"

// DayFor returns the schedule entry for weekday d.
func DayFor(s model.WeekSchedule, d time.Weekday) model.DaySchedule {
	switch d {
	case time.Monday:
		return s.Monday
	case time.Tuesday:
		return s.Tuesday
	case time.Wednesday:
		return s.Wednesday
	case time.Thursday:
		return s.Thursday
	case time.Friday:
		return s.Friday
	case time.Saturday:
		return s.Saturday
	default:
		return s.Sunday
	}
}

// Location loads the business-hours timezone, falling back to UTC for unknown names.
func Location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warnf("businessHours: unknown timezone %q, using UTC", name)
		return time.UTC
	}
	return loc
}

// IsOpen reports whether t falls inside the schedule. Disabled business hours are always open.
// The window is [startTime, endTime); malformed times or endTime <= startTime mean closed that day.
func IsOpen(bh model.BusinessHours, t time.Time) bool {
	if !bh.Enabled {
		return true
	}
	local := t.In(Location(bh.Timezone))
	day := DayFor(bh.Schedule, local.Weekday())
	if !day.Enabled {
		return false
	}
	start, err := time.Parse(clockLayout, day.StartTime)
	if err != nil {
		return false
	}
	end, err := time.Parse(clockLayout, day.EndTime)
	if err != nil {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	from := start.Hour()*60 + start.Minute()
	to := end.Hour()*60 + end.Minute()
	return minute >= from && minute < to
}
