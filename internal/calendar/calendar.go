// Package calendar resolves instants into civil dates of one fixed timezone
// and derives weekday names and month keys from them.
package calendar

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone lookups must not depend on the host's zoneinfo
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Date is a civil calendar date with no time of day and no zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes out-of-range values the same way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return dateFromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses a zero-padded YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return dateFromTime(t), nil
}

func dateFromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d Date) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// AddDays returns the date n calendar days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return dateFromTime(d.midnight().AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	return d.midnight().Before(o.midnight())
}

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool {
	return d.midnight().After(o.midnight())
}

// Weekday returns the weekday name of d.
func (d Date) Weekday() Weekday {
	return weekdayFromStd(d.midnight().Weekday())
}

// MonthKey returns the YYYY-MM truncation of d.
func (d Date) MonthKey() string {
	return d.String()[:7]
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock supplies the current instant. Inject a FixedClock in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// Calendar resolves instants against one fixed civil timezone so that
// "today" is the same wherever the process runs.
type Calendar struct {
	loc   *time.Location
	clock Clock
}

// New builds a Calendar. A nil clock means the system clock.
func New(loc *time.Location, clock Clock) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Calendar{loc: loc, clock: clock}
}

// Load builds a Calendar for the IANA zone name, e.g. "Asia/Colombo".
func Load(zone string, clock Clock) (*Calendar, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return New(loc, clock), nil
}

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Now returns the current instant expressed in the calendar's timezone.
func (c *Calendar) Now() time.Time {
	return c.clock.Now().In(c.loc)
}

// Today returns the current civil date.
func (c *Calendar) Today() Date {
	return c.DateOf(c.clock.Now())
}

// DateOf converts an instant to its civil date in the calendar's timezone.
func (c *Calendar) DateOf(t time.Time) Date {
	return dateFromTime(t.In(c.loc))
}

// WeekdayOf returns the weekday name of a civil date.
func (c *Calendar) WeekdayOf(d Date) Weekday {
	return d.Weekday()
}

// ThisMonth returns the month key of Today.
func (c *Calendar) ThisMonth() string {
	return c.Today().MonthKey()
}
