package grading

import "time"

// SoonWindow is how close a due date must be to count as due soon.
const SoonWindow = 3 * 24 * time.Hour

type DueState string

const (
	DueNone     DueState = "none"
	DueOverdue  DueState = "overdue"
	DueSoon     DueState = "due-soon"
	DueUpcoming DueState = "upcoming"
)

func (s DueState) Label() string {
	switch s {
	case DueOverdue:
		return "Overdue"
	case DueSoon:
		return "Due soon"
	case DueUpcoming:
		return "Upcoming"
	}
	return "No due date"
}

// StateOf classifies a due date relative to now. A due date is a whole day:
// work is overdue only once that day has passed.
func StateOf(due *time.Time, now time.Time) DueState {
	if due == nil {
		return DueNone
	}
	end := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, due.Location()).AddDate(0, 0, 1)
	switch {
	case !now.Before(end):
		return DueOverdue
	case end.Sub(now) <= SoonWindow:
		return DueSoon
	default:
		return DueUpcoming
	}
}
