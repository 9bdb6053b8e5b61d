package legacy

import (
	"time"

	"github.com/go-faster/errors"
)

// DateLayouts are the accepted calendar date forms, tried in order.
var DateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"01/02/06",
	"1/02/2006",
	"1/2/2006",
	"1/2/06",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
}

// ClockLayouts are the accepted time-of-day forms, tried in order.
var ClockLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"3:04:05 PM",
	"15:04",
	"15:04:05",
}

// ErrUnparseableDate is wrapped by every date parse failure.
var ErrUnparseableDate = errors.New("unrecognized date format")

// ParseDate tries layouts in order; the first match wins. Times are UTC.
func ParseDate(value string, layouts []string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Wrapf(ErrUnparseableDate, "%q", value)
}

// ParseDateClock combines a date and a time-of-day field into one timestamp.
// A blank clock means midnight.
func ParseDateClock(date, clock string) (time.Time, error) {
	day, err := ParseDate(date, DateLayouts)
	if err != nil {
		return time.Time{}, err
	}
	if clock == "" {
		return day, nil
	}
	tod, err := ParseDate(clock, ClockLayouts)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, time.UTC), nil
}
