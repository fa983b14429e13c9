package rituals

import (
	"time"

	"github.com/HammerMeetNail/roots/internal/models"
)

// WeekStart returns the Sunday that starts the week containing day.
func WeekStart(day time.Time) time.Time {
	d := DateOf(day)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// RecentActivity buckets completion dates into the current and previous
// Sunday-start weeks relative to today.
func RecentActivity(dates []time.Time, today time.Time) models.WeeklyActivity {
	var activity models.WeeklyActivity

	currentStart := WeekStart(today)
	lastStart := currentStart.AddDate(0, 0, -7)

	for _, date := range dates {
		d := DateOf(date)
		if d.Before(lastStart) {
			continue
		}
		offset := int(d.Sub(lastStart).Hours() / 24)
		switch {
		case offset < 7:
			activity.LastWeek[offset] = true
		case offset < 14:
			activity.CurrentWeek[offset-7] = true
		}
	}

	return activity
}
