package parser

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/thisisjab/eventsearch/fault"
	"github.com/thisisjab/eventsearch/search/ast"
)

var datetimeLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDatetimeString parses an ISO 8601 literal. A trailing Z is accepted and
// every value is read as UTC.
func parseDatetimeString(value string) (time.Time, error) {
	v := strings.TrimSuffix(value, "Z")

	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fault.Invalid("%s is not a valid ISO8601 date query", value)
}

// parseDatetimeRange resolves a relative offset such as -1h against now. A
// '+' offset is a lower bound and a '-' offset an upper bound.
func parseDatetimeRange(value string, now time.Time) (ast.Operator, time.Time, error) {
	invalid := fault.Invalid("%s is not a valid datetime query", value)

	if len(value) < 3 {
		return "", time.Time{}, invalid
	}

	flag, digits, unit := value[0], value[1:len(value)-1], value[len(value)-1]

	count, err := strconv.Atoi(digits)
	if err != nil {
		return "", time.Time{}, invalid.WithOriginal(err)
	}

	var unitDuration time.Duration
	switch unit {
	case 'w':
		unitDuration = 7 * 24 * time.Hour
	case 'd':
		unitDuration = 24 * time.Hour
	case 'h':
		unitDuration = time.Hour
	case 'm':
		unitDuration = time.Minute
	default:
		return "", time.Time{}, invalid
	}

	// Offsets past the range of time.Duration would wrap around.
	if int64(count) > math.MaxInt64/int64(unitDuration) {
		return "", time.Time{}, invalid
	}
	delta := time.Duration(count) * unitDuration

	bound := now.Add(-delta)

	switch flag {
	case '+':
		return ast.OpGte, bound, nil
	case '-':
		return ast.OpLte, bound, nil
	default:
		return "", time.Time{}, invalid
	}
}

// parseDatetimeValue expands a literal into the half-open range it implies: a
// whole day for a date, five minutes before to six minutes after a datetime.
func parseDatetimeValue(value string) (time.Time, time.Time, error) {
	v := strings.TrimSuffix(value, "Z")

	if len(v) == len("2006-01-02") {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, fault.Invalid("%s is not a valid ISO8601 date query", value).WithOriginal(err)
		}
		return day, day.AddDate(0, 0, 1), nil
	}

	t, err := parseDatetimeString(v)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	return t.Add(-5 * time.Minute), t.Add(6 * time.Minute), nil
}
