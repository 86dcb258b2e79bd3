// Package schedule converts wall-clock time text into a one-shot scheduled
// task and drives it through its lifecycle.
package schedule

import (
	"strconv"
	"strings"
	"time"
)

// ParseWallClock resolves free-form clock text to the next occurrence of
// that wall-clock time at or after now. Accepted forms are "HH:MM" (one or
// two hour digits) and compact "HMM"/"HHMM", both 24-hour. If the time of
// day already passed today, the result is tomorrow at that time.
//
// Pure and deterministic given now; the result carries now's location.
func ParseWallClock(text string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, &InvalidTimeError{Input: text, Reason: "empty"}
	}

	var hh, mm string
	if i := strings.IndexByte(s, ':'); i >= 0 {
		hh, mm = s[:i], s[i+1:]
		if len(hh) < 1 || len(hh) > 2 || len(mm) != 2 {
			return time.Time{}, &InvalidTimeError{Input: text, Reason: "want HH:MM"}
		}
	} else {
		// Compact form: 905 -> 9:05, 1701 -> 17:01.
		switch len(s) {
		case 3:
			hh, mm = s[:1], s[1:]
		case 4:
			hh, mm = s[:2], s[2:]
		default:
			return time.Time{}, &InvalidTimeError{Input: text, Reason: "want HH:MM or HHMM"}
		}
	}

	if !allDigits(hh) || !allDigits(mm) {
		return time.Time{}, &InvalidTimeError{Input: text, Reason: "not numeric"}
	}
	hour, _ := strconv.Atoi(hh)
	minute, _ := strconv.Atoi(mm)
	if hour < 0 || hour > 23 {
		return time.Time{}, &InvalidTimeError{Input: text, Reason: "hour out of range"}
	}
	if minute < 0 || minute > 59 {
		return time.Time{}, &InvalidTimeError{Input: text, Reason: "minute out of range"}
	}

	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if target.Before(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// SuggestTime returns the interactive prompt default: one minute past the
// next full hour.
func SuggestTime(now time.Time) string {
	next := now.Add(time.Hour)
	return time.Date(next.Year(), next.Month(), next.Day(), next.Hour(), 1, 0, 0, next.Location()).Format("15:04")
}
