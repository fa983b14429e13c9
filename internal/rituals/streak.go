package rituals

import (
	"time"

	"github.com/HammerMeetNail/roots/internal/models"
)

// Progress is the streak state of a single ritual.
type Progress struct {
	StreakCount   int
	LastCompleted *time.Time
}

// Today returns the calendar date of now in loc, as UTC midnight.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateOf normalizes a stored date to UTC midnight of its own calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

// CompletedOn reports whether r was last completed on day.
func CompletedOn(r models.Ritual, day time.Time) bool {
	return r.LastCompleted != nil && SameDay(*r.LastCompleted, day)
}

// Complete advances a standalone ritual's streak for today. The second return
// value is false when the ritual was already completed today.
func Complete(r models.Ritual, today time.Time) (Progress, bool) {
	current := Progress{StreakCount: r.StreakCount, LastCompleted: r.LastCompleted}
	if CompletedOn(r, today) {
		return current, false
	}
	day := DateOf(today)
	return Progress{StreakCount: r.StreakCount + 1, LastCompleted: &day}, true
}
