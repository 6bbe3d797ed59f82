// Package dates parses the date and time formats users type into the bot.
// Both the step-by-step flows and AI-extracted commands go through the same
// parsers, so a value accepted in one path is accepted in the other.
package dates

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Layout is the canonical minute-precision timestamp form used for display,
// the AI tasks context and the HTTP API.
const Layout = "2006-01-02 15:04"

// LayoutSeconds is accepted on input for compatibility with records written
// with an explicit seconds component.
const LayoutSeconds = "2006-01-02 15:04:05"

var (
	ErrBadDate  = errors.New("unrecognized date")
	ErrBadClock = errors.New("unrecognized time")

	// the words users type instead of an explicit date
	todayWords = []string{"сегодня", "today"}
)

// ParseDate understands day/month/year dates with '-', '.' and '/' used
// interchangeably as separators, ISO year-first dates, and the literal word
// for "today", which resolves against now.
func ParseDate(txt string, now time.Time) (time.Time, error) {
	txt = strings.TrimSpace(txt)

	lower := strings.ToLower(txt)
	for _, w := range todayWords {
		if lower == w {
			y, m, d := now.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}

	norm := strings.NewReplacer("/", ".", "-", ".").Replace(txt)

	for _, layout := range []string{"02.01.2006", "2.1.2006", "2006.01.02", "2006.1.2"} {
		if t, err := time.ParseInLocation(layout, norm, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, ErrBadDate
}

// ParseClock parses an hour:minute pair, with or without a leading zero.
func ParseClock(txt string) (hour, min int, err error) {
	txt = strings.TrimSpace(txt)

	for _, layout := range []string{"15:04", "15.04"} {
		if t, err := time.Parse(layout, txt); err == nil {
			return t.Hour(), t.Minute(), nil
		}
	}

	return 0, 0, ErrBadClock
}

// Combine merges a parsed date with a parsed clock value into a
// minute-precision timestamp.
func Combine(date time.Time, hour, min int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, min, 0, 0, time.UTC)
}

// ParseStamp reads a canonical timestamp, tolerating an optional seconds
// component. Seconds are dropped: scheduling works at minute precision.
func ParseStamp(txt string) (time.Time, error) {
	txt = strings.TrimSpace(txt)

	for _, layout := range []string{Layout, LayoutSeconds} {
		if t, err := time.ParseInLocation(layout, txt, time.UTC); err == nil {
			return t.Truncate(time.Minute), nil
		}
	}

	return time.Time{}, errors.Errorf("unrecognized timestamp %q", txt)
}

// Format renders a timestamp in the canonical minute-precision form.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}
