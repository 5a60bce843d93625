package notification

import (
	"time"
)

// NextReminderTargets returns the dates whose confirmed reservations should
// be reminded when the dispatcher runs on the given day. Thursday covers the
// weekend's Friday and Saturday; Friday covers the following Sunday; Saturday
// sends nothing.
func NextReminderTargets(today time.Time) []time.Time {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	switch day.Weekday() {
	case time.Monday, time.Tuesday, time.Wednesday, time.Sunday:
		return []time.Time{day.AddDate(0, 0, 1)}
	case time.Thursday:
		return []time.Time{day.AddDate(0, 0, 1), day.AddDate(0, 0, 2)}
	case time.Friday:
		return []time.Time{day.AddDate(0, 0, 2)}
	default: // Saturday
		return nil
	}
}
