package common

import (
	"testing"
	"time"
)

func TestParseIssueTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"tracker format", "2017-12-19T09:40:00.000-0500", false},
		{"without millis", "2017-12-19T09:40:00-0500", false},
		{"rfc3339", "2017-12-19T09:40:00Z", false},
		{"garbage", "yesterday-ish", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIssueTime(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseIssueTime(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestParseIssueTimeKeepsInstant(t *testing.T) {
	got, err := ParseIssueTime("2017-12-19T09:40:00.000-0500")
	if err != nil {
		t.Fatalf("ParseIssueTime() error = %v", err)
	}
	want := time.Date(2017, 12, 19, 14, 40, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseIssueTime() = %v, want instant %v", got, want)
	}
}

func TestFormatFriendlyTimePassesThroughUnparseable(t *testing.T) {
	if got := FormatFriendlyTime("not a timestamp"); got != "not a timestamp" {
		t.Errorf("FormatFriendlyTime() = %q, want input unchanged", got)
	}
}

func TestFriendlyTimeRoundTrip(t *testing.T) {
	orig := time.Date(2017, 12, 19, 9, 40, 0, 0, time.Local)
	friendly := orig.Format(FriendlyTimeLayout)

	got, err := ParseFriendlyTime(friendly)
	if err != nil {
		t.Fatalf("ParseFriendlyTime(%q) error = %v", friendly, err)
	}
	if !got.Equal(orig) {
		t.Errorf("round trip of %q = %v, want %v", friendly, got, orig)
	}
}

func TestIsToday(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"now", FormatIssueTime(now), true},
		{"start of today", FormatIssueTime(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 1, 0, time.Local)), true},
		{"yesterday", FormatIssueTime(now.AddDate(0, 0, -1)), false},
		{"tomorrow", FormatIssueTime(now.AddDate(0, 0, 1)), false},
		{"unparseable", "nope", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsToday(tt.input); got != tt.want {
				t.Errorf("IsToday(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsYesterday(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yesterday", FormatIssueTime(now.AddDate(0, 0, -1)), true},
		{"today", FormatIssueTime(now), false},
		{"two days ago", FormatIssueTime(now.AddDate(0, 0, -2)), false},
		{"unparseable", "nope", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsYesterday(tt.input); got != tt.want {
				t.Errorf("IsYesterday(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
