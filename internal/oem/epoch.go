package oem

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedTimestamp is matched by every epoch parse failure.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// minEpochLen covers "YYYY-DDDTHH:MM:SS"; the fractional seconds and zone
// suffix that follow are not part of the numeric parse.
const minEpochLen = 17

// EpochError reports an epoch string that could not be parsed.
type EpochError struct {
	Input  string
	Reason string
}

func (e *EpochError) Error() string {
	return fmt.Sprintf("malformed timestamp %q: %s", e.Input, e.Reason)
}

func (e *EpochError) Unwrap() error {
	return ErrMalformedTimestamp
}

// ParseEpoch converts an OEM epoch in YYYY-DDDTHH:MM:SS.sssZ format to UTC.
// The result is January 1st of the year plus (day-of-year - 1) days and the
// hour, minute and second offsets; out-of-range fields roll over through
// normal date arithmetic (day 400 lands in the following year).
func ParseEpoch(s string) (time.Time, error) {
	if len(s) < minEpochLen {
		return time.Time{}, &EpochError{Input: s, Reason: "too short"}
	}

	year, err := digits(s, 0, 4)
	if err != nil {
		return time.Time{}, err
	}
	day, err := digits(s, 5, 8)
	if err != nil {
		return time.Time{}, err
	}
	hour, err := digits(s, 9, 11)
	if err != nil {
		return time.Time{}, err
	}
	minute, err := digits(s, 12, 14)
	if err != nil {
		return time.Time{}, err
	}
	second, err := digits(s, 15, 17)
	if err != nil {
		return time.Time{}, err
	}

	if day < 1 {
		return time.Time{}, &EpochError{Input: s, Reason: "day-of-year must be >= 1"}
	}

	// time.Date normalizes day overflow, so day-of-year maps directly onto
	// the day-of-month argument of January.
	return time.Date(year, time.January, day, hour, minute, second, 0, time.UTC), nil
}

// FormatEpoch renders t (in UTC) in the OEM epoch format.
func FormatEpoch(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d-%03dT%02d:%02d:%02d.%03dZ",
		t.Year(), t.YearDay(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/int(time.Millisecond))
}

// digits parses s[lo:hi] as an unsigned decimal number.
func digits(s string, lo, hi int) (int, error) {
	n := 0
	for i := lo; i < hi; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, &EpochError{Input: s, Reason: fmt.Sprintf("non-digit %q at offset %d", c, i)}
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
