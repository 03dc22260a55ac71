package common

import (
	"fmt"
	"time"
)

// IssueTimeLayout is the timestamp format the tracker uses on issues and
// worklogs ("2017-12-19T09:40:00.000-0500").
const IssueTimeLayout = "2006-01-02T15:04:05.000-0700"

// FriendlyTimeLayout is the human-readable form shown in tables. The zone
// abbreviation is explicit because some environments drop it otherwise.
const FriendlyTimeLayout = "Mon 01/02/06 15:04:05 MST"

var issueTimeLayouts = []string{
	IssueTimeLayout,
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

// ParseIssueTime parses a tracker timestamp into local time.
func ParseIssueTime(s string) (time.Time, error) {
	for _, layout := range issueTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Local(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatFriendlyTime renders a tracker timestamp for display. Unparseable
// input is returned as-is rather than hidden.
func FormatFriendlyTime(s string) string {
	t, err := ParseIssueTime(s)
	if err != nil {
		return s
	}
	return t.Format(FriendlyTimeLayout)
}

// ParseFriendlyTime parses a display timestamp back into a time value,
// used when edited table text is round-tripped to the server.
func ParseFriendlyTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(FriendlyTimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q: %w", s, err)
	}
	return t, nil
}

// FormatIssueTime renders a time value in the tracker's timestamp format.
func FormatIssueTime(t time.Time) string {
	return t.Format(IssueTimeLayout)
}

// IsToday reports whether the tracker timestamp falls on the local calendar day.
func IsToday(s string) bool {
	t, err := ParseIssueTime(s)
	if err != nil {
		return false
	}
	now := time.Now()
	y1, m1, d1 := now.Date()
	y2, m2, d2 := t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// IsYesterday reports whether the tracker timestamp falls on the previous
// local calendar day.
func IsYesterday(s string) bool {
	t, err := ParseIssueTime(s)
	if err != nil {
		return false
	}
	yesterday := time.Now().AddDate(0, 0, -1)
	y1, m1, d1 := yesterday.Date()
	y2, m2, d2 := t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
