package models

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date encoded as yyyymmdd, so that integer order is
// calendar order.
type Date int32

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date(int32(year)*10000 + int32(month)*100 + int32(day))
}

// DateOf drops the clock part of t, keeping its calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate accepts 2006-01-02 optionally followed by a time part, either
// space or 'T' separated, as dataframe exporters write it.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		if sep := s[len(dateLayout)]; sep == ' ' || sep == 'T' {
			s = s[:len(dateLayout)]
		}
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

func (d Date) Year() int         { return int(d / 10000) }
func (d Date) Month() time.Month { return time.Month(d / 100 % 100) }
func (d Date) Day() int          { return int(d % 100) }

func (d Date) IsZero() bool { return d == 0 }

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year(), int(d.Month()), d.Day())
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = 0
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
