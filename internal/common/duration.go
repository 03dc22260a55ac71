package common

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Duration strings follow the tracker's worklog grammar: an optional count for
// each of d/h/m/s, e.g. "2h30m", "1d 4h", "45m". The tracker counts a day as
// a 8-hour workday.
const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 8 * secondsPerHour
)

var durationUnitPatterns = map[string]*regexp.Regexp{
	"d": regexp.MustCompile(`(\d+)d`),
	"h": regexp.MustCompile(`(\d+)h`),
	"m": regexp.MustCompile(`(\d+)m`),
	"s": regexp.MustCompile(`(\d+)s`),
}

func unitValue(s, unit string) string {
	m := durationUnitPatterns[unit].FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// SanitizeDuration converts a user-entered duration string into the format
// the tracker accepts for time tracking ("2h 30m" -> "2h 30m", "2h30m" ->
// "2h 30m"). Input with no recognized unit letters is passed through
// unchanged so a bare number keeps the tracker's default unit (minutes).
func SanitizeDuration(s string) string {
	s = strings.ReplaceAll(s, " ", "")

	var parts []string
	for _, unit := range []string{"d", "h", "m", "s"} {
		if v := unitValue(s, unit); v != "" {
			parts = append(parts, v+unit)
		}
	}

	if len(parts) == 0 {
		return s
	}
	return strings.Join(parts, " ")
}

// ParseDurationSeconds converts a duration string into seconds. A bare number
// is treated as minutes, matching the tracker's default unit.
func ParseDurationSeconds(s string) (int64, error) {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, nil
	}

	var total int64
	matched := false
	for unit, mult := range map[string]int64{
		"d": secondsPerDay,
		"h": secondsPerHour,
		"m": secondsPerMinute,
		"s": 1,
	} {
		v := unitValue(s, unit)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		total += n * mult
		matched = true
	}

	if !matched {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		total = n * secondsPerMinute
	}

	return total, nil
}

// FormatSeconds renders a second count as a compact duration ("2h30m").
// Zero and absent durations render as "0m", never as an empty string.
func FormatSeconds(seconds int64) string {
	if seconds <= 0 {
		return "0m"
	}

	m := seconds / 60
	s := seconds % 60
	h := m / 60
	m = m % 60

	var b strings.Builder
	if h > 0 {
		fmt.Fprintf(&b, "%dh", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dm", m)
	}
	if s > 0 {
		fmt.Fprintf(&b, "%ds", s)
	}
	return b.String()
}
