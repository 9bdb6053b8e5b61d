// Package schedules evaluates recurring schedules stored as five-field cron
// expressions.
package schedules

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/congregate/internal/entities"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks that expr is a valid five-field cron expression.
func Validate(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

// Describe returns a human-readable description of a cron expression.
func Describe(expr string) string {
	switch expr {
	case "0 * * * *":
		return "Every hour at :00"
	case "*/15 * * * *":
		return "Every 15 minutes"
	case "*/30 * * * *":
		return "Every 30 minutes"
	case "0 */6 * * *":
		return "Every 6 hours"
	case "0 0 * * *":
		return "Daily at midnight"
	case "0 0 * * 0":
		return "Weekly on Sunday at midnight"
	case "0 2 * * *":
		return "Daily at 02:00"
	default:
		return "Custom schedule: " + expr
	}
}

// NextRun returns the first occurrence of expr after from.
func NextRun(expr string, from time.Time) (*time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	next := sched.Next(from)
	return &next, nil
}

// WasCheckInActive reports whether t falls inside the check-in window of an
// occurrence of s. The window opens CheckInStartOffsetMinutes before the
// occurrence and closes CheckInEndOffsetMinutes after it. Schedules without a
// valid expression are never active.
func WasCheckInActive(s entities.Schedule, t time.Time) bool {
	if s.CronExpression == "" {
		return false
	}
	sched, err := parser.Parse(s.CronExpression)
	if err != nil {
		return false
	}

	before := time.Duration(s.CheckInStartOffsetMinutes) * time.Minute
	after := time.Duration(s.CheckInEndOffsetMinutes) * time.Minute

	// First occurrence at or after the earliest start that could still cover t.
	from := t.Add(-after).Truncate(time.Second).Add(-time.Second)
	occurrence := sched.Next(from)
	if occurrence.IsZero() {
		return false
	}
	return !occurrence.After(t.Add(before))
}

// FirstActive returns the first schedule whose check-in window covers t.
func FirstActive(list []entities.Schedule, t time.Time) *entities.Schedule {
	for i := range list {
		if WasCheckInActive(list[i], t) {
			return &list[i]
		}
	}
	return nil
}
