package services

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// isoLayout matches the millisecond UTC form used across the stores.
const isoLayout = "2006-01-02T15:04:05.000Z"

// ParsePostedAt converts a calendar date in any common layout into an
// ISO-8601 UTC timestamp. Dates without a zone are read as UTC. Unparseable
// input yields nil.
func ParsePostedAt(raw string) *string {
	t, ok := parseTime(raw)
	if !ok {
		return nil
	}
	out := t.Format(isoLayout)
	return &out
}

// Period returns the "YYYY-MM" bucket of a posted_at value.
func Period(postedAt *string) (string, bool) {
	if postedAt == nil {
		return "", false
	}
	t, ok := parseTime(*postedAt)
	if !ok {
		return "", false
	}
	return t.Format("2006-01"), true
}

func parseTime(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
	}
	t = t.UTC()
	if t.Year() < 0 || t.Year() > 9999 {
		return time.Time{}, false
	}
	return t, true
}
