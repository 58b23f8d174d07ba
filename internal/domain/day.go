package domain

import (
	"fmt"
	"time"
)

// dayFormat is the wire format for calendar days.
const dayFormat = "2006-01-02"

// Day is a calendar day anchored at UTC midnight. The whole engine applies
// this one policy: "today", the last-seen anchor, and stat dates are all UTC
// days, so a gap computed between any two of them is well defined.
type Day struct {
	t time.Time
}

// DayOf truncates an instant to its UTC calendar day.
func DayOf(t time.Time) Day {
	u := t.UTC()
	return Day{t: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a day in 2006-01-02 form.
func ParseDay(value string) (Day, error) {
	t, err := time.ParseInLocation(dayFormat, value, time.UTC)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", value, err)
	}
	return Day{t: t}, nil
}

// Time returns the day as midnight UTC.
func (d Day) Time() time.Time {
	return d.t
}

// Next returns the following calendar day.
func (d Day) Next() Day {
	return DayOf(d.t.AddDate(0, 0, 1))
}

// AddDays returns the day n days later (earlier when n is negative).
func (d Day) AddDays(n int) Day {
	return DayOf(d.t.AddDate(0, 0, n))
}

// Before reports whether d falls strictly before other.
func (d Day) Before(other Day) bool {
	return d.t.Before(other.t)
}

// Equal reports whether both values name the same calendar day.
func (d Day) Equal(other Day) bool {
	return d.t.Equal(other.t)
}

// IsZero reports whether the day is unset.
func (d Day) IsZero() bool {
	return d.t.IsZero()
}

func (d Day) String() string {
	return d.t.Format(dayFormat)
}

// MarshalJSON encodes the day as "2006-01-02".
func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "2006-01-02" strings.
func (d *Day) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("day must be a %s string", dayFormat)
	}
	parsed, err := ParseDay(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
