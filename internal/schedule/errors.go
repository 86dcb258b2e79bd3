package schedule

import (
	"errors"
	"fmt"
)

// ErrPastTime indicates the computed target is not in the future. The
// parser resolves to the next occurrence, so this is defensive.
var ErrPastTime = errors.New("schedule: target time already passed")

// InvalidTimeError indicates time text that is not a valid HH:MM or HHMM
// 24-hour clock time.
type InvalidTimeError struct {
	Input  string
	Reason string
}

func (e *InvalidTimeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("schedule: invalid time %q: %s", e.Input, e.Reason)
	}
	return fmt.Sprintf("schedule: invalid time %q", e.Input)
}

// Is implements errors.Is for InvalidTimeError.
func (e *InvalidTimeError) Is(target error) bool {
	_, ok := target.(*InvalidTimeError)
	return ok
}

// ErrInvalidTime is a sentinel for errors.Is matching.
var ErrInvalidTime = &InvalidTimeError{}
