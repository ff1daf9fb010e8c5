package domain

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	DateLayout,
}

// ParseTime accepts the date and date-time layouts clients send for event dates,
// due dates and birth dates. Values without a zone are read as UTC.
func ParseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", v)
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// NormalizeTime rewrites a client-supplied value as RFC3339 UTC.
func NormalizeTime(v string) (string, error) {
	t, err := ParseTime(v)
	if err != nil {
		return "", err
	}
	return FormatTime(t), nil
}

// NormalizeDate rewrites a client-supplied value as YYYY-MM-DD.
func NormalizeDate(v string) (string, error) {
	t, err := ParseTime(v)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}
