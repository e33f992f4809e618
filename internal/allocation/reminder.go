package allocation

import "time"

// reminderFraction places the near-overdue email at roughly 80% of the
// borrow window.
const reminderFraction = 0.8

// ReminderTriggerTime computes when the near-overdue reminder becomes due,
// floored at the borrow creation instant and capped at the return date.
func ReminderTriggerTime(requestDate, returnDate time.Time) time.Time {
	window := returnDate.Sub(requestDate)
	if window <= 0 {
		return requestDate
	}

	trigger := requestDate.Add(time.Duration(float64(window) * reminderFraction))
	if trigger.Before(requestDate) {
		return requestDate
	}
	if trigger.After(returnDate) {
		return returnDate
	}

	return trigger
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
