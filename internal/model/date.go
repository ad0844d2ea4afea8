package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Date is a local calendar date with no time-of-day and no zone. It shares
// civil.Date's layout and adds the Monday-based week and month bounds the
// planner works in. The zero value is not a valid date; use IsZero.
type Date civil.Date

// NewDate normalizes year/month/day (e.g. Jan 32 -> Feb 1).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(civil.DateOf(t))
}

// Today returns the calendar date of now in now's location.
func Today(now time.Time) Date {
	return DateOf(now)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date(d), nil
}

func (d Date) IsZero() bool { return civil.Date(d).IsZero() }

// Time returns midnight of d in UTC. Only used for date arithmetic.
func (d Date) Time() time.Time {
	return d.In(time.UTC)
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return civil.Date(d).In(loc)
}

func (d Date) AddDays(n int) Date {
	return Date(civil.Date(d).AddDays(n))
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	return civil.Date(d).Compare(civil.Date(o))
}

func (d Date) Before(o Date) bool { return civil.Date(d).Before(civil.Date(o)) }
func (d Date) After(o Date) bool  { return civil.Date(d).After(civil.Date(o)) }

// WeekStart returns the Monday on or before d.
func (d Date) WeekStart() Date {
	offset := (int(d.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return d.AddDays(-offset)
}

// WeekEnd returns the Sunday on or after d.
func (d Date) WeekEnd() Date {
	return d.WeekStart().AddDays(6)
}

func (d Date) MonthStart() Date {
	return Date{Year: d.Year, Month: d.Month, Day: 1}
}

func (d Date) MonthEnd() Date {
	return NewDate(d.Year, d.Month+1, 1).AddDays(-1)
}

// Within reports whether d lies in the inclusive range [from, to].
func (d Date) Within(from, to Date) bool {
	return !d.Before(from) && !d.After(to)
}

// String formats d as YYYY-MM-DD; the zero date formats as "".
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return civil.Date(d).String()
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is a time of day in minutes after midnight. Values above 24h are
// allowed for end times that spill past midnight.
type Clock int

const MinutesPerDay Clock = 24 * 60

// NewClock builds a Clock from hour and minute.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ClockOf returns the time-of-day portion of t.
func ClockOf(t time.Time) Clock {
	return NewClock(t.Hour(), t.Minute())
}

// ParseClock parses a "HH:MM" time of day (00:00 to 23:59).
func ParseClock(s string) (Clock, error) {
	return parseClock(s, 23)
}

// parseClock accepts hours up to maxHour. End times are encoded with
// maxHour 47 so a span ending past midnight survives a round trip.
func parseClock(s string, maxHour int) (Clock, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("parse clock %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > maxHour {
		return 0, fmt.Errorf("parse clock %q: bad hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("parse clock %q: bad minute", s)
	}
	return NewClock(h, m), nil
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// Add returns c shifted by the given number of minutes.
func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := parseClock(string(b), 47)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
