package models

import (
	"errors"
	"fmt"
	"time"
)

// TimestampLayout is the minute-resolution format used on the command line
// and in the meals file
const TimestampLayout = "2006-01-02:15:04"

// DateLayout is the day format used to pick a day
const DateLayout = "2006-01-02"

// ErrInvalidTimestamp is returned for text that is not a TimestampLayout time
var ErrInvalidTimestamp = errors.New("invalid timestamp, use YYYY-MM-DD:HH:MM")

// ParseTimestamp parses s as a local TimestampLayout time
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return t, nil
}

// ParseDate parses s as a local DateLayout day
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return t, nil
}

// FormatTimestamp formats t in TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}
