package calendar

import (
	"fmt"
	"time"
)

// Weekday is one of the seven English weekday names, Monday through Sunday.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

// Weekdays lists the enum in canonical order (Monday=0 … Sunday=6).
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Index returns the canonical position of w, or -1 when w is not a weekday.
func (w Weekday) Index() int {
	for i, d := range Weekdays {
		if d == w {
			return i
		}
	}
	return -1
}

// Valid reports whether w is one of the seven weekday names.
func (w Weekday) Valid() bool {
	return w.Index() >= 0
}

// ParseWeekday accepts an exact weekday name.
func ParseWeekday(s string) (Weekday, error) {
	w := Weekday(s)
	if !w.Valid() {
		return "", fmt.Errorf("unknown weekday %q", s)
	}
	return w, nil
}

func weekdayFromStd(d time.Weekday) Weekday {
	// time.Weekday counts from Sunday=0.
	return Weekdays[(int(d)+6)%7]
}
