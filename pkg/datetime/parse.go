// Package datetime provides date and time utility functions.
package datetime

import (
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/budget-optimizer/pkg/constants"
)

const (
	// DateLayout is the format expected for metric windows in requests and flags.
	DateLayout = constants.DateLayout
)

// ParseOptionalDate parses a DateLayout value. An empty string yields the zero time.
func ParseOptionalDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", value, err)
	}
	return t, nil
}

// ParseWindow parses an optional [start, end] pair. Both must be set together and start must not be after end.
func ParseWindow(start, end string) (time.Time, time.Time, error) {
	from, err := ParseOptionalDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := ParseOptionalDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from.IsZero() != to.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("start and end must be provided together")
	}
	if !from.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is after end %s", start, end)
	}
	return from, to, nil
}

// WeekdayIndex returns the day of the week with Monday = 0 and Sunday = 6,
// the encoding the forecast model was trained with.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	return WeekdayIndex(t) >= 5
}
