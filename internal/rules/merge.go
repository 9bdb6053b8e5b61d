package rules

import (
	"strings"
	"time"

	"github.com/mrlokans/congregate/internal/legacy"
)

// Merge combines a stored value with an incoming one. Accumulate appends with
// a comma unless the element is already present.
func Merge(existing, incoming string, strategy Strategy) string {
	if strategy != StrategyAccumulate || existing == "" {
		return incoming
	}
	if incoming == "" {
		return existing
	}
	for _, part := range strings.Split(existing, ",") {
		if part == incoming {
			return existing
		}
	}
	return existing + "," + incoming
}

// MoreRecent reports whether incoming should replace the stored date. It does
// when nothing is stored or the stored date is earlier. A stored value that is
// not a date is kept.
func MoreRecent(existing string, incoming *time.Time) bool {
	if strings.TrimSpace(existing) == "" {
		return true
	}
	if incoming == nil {
		return false
	}
	stored, err := legacy.ParseDate(strings.TrimSpace(existing), legacy.DateLayouts)
	if err != nil {
		return false
	}
	return stored.Before(*incoming)
}
