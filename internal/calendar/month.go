package calendar

import (
	"fmt"
	"time"
)

// MonthKey returns the YYYY-MM bucket of d.
func MonthKey(d Date) string {
	return d.MonthKey()
}

// ParseMonthKey validates a zero-padded YYYY-MM key.
func ParseMonthKey(key string) (year int, month time.Month, err error) {
	t, err := time.Parse(monthLayout, key)
	if err != nil {
		return 0, 0, fmt.Errorf("parse month key %q: %w", key, err)
	}
	return t.Year(), t.Month(), nil
}

// ValidMonthKey reports whether key is a well-formed YYYY-MM string.
func ValidMonthKey(key string) bool {
	_, _, err := ParseMonthKey(key)
	return err == nil
}

func monthIndex(year int, month time.Month) int {
	return year*12 + int(month) - 1
}

func keyFromIndex(idx int) string {
	return fmt.Sprintf("%04d-%02d", idx/12, idx%12+1)
}

// MonthKeysBetween lists the month keys from start to end inclusive, one per
// calendar month. When the range holds more than limit months only the most
// recent limit keys are kept; a limit <= 0 keeps everything. An end before
// start yields an empty slice.
func MonthKeysBetween(start, end string, limit int) ([]string, error) {
	sy, sm, err := ParseMonthKey(start)
	if err != nil {
		return nil, err
	}
	ey, em, err := ParseMonthKey(end)
	if err != nil {
		return nil, err
	}

	first, last := monthIndex(sy, sm), monthIndex(ey, em)
	if last < first {
		return []string{}, nil
	}
	if limit > 0 && last-first+1 > limit {
		first = last - limit + 1
	}

	keys := make([]string, 0, last-first+1)
	for idx := first; idx <= last; idx++ {
		keys = append(keys, keyFromIndex(idx))
	}
	return keys, nil
}

// LastMonths returns the n month keys ending with end, oldest first.
func LastMonths(end string, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	y, m, err := ParseMonthKey(end)
	if err != nil {
		return nil, err
	}
	start := keyFromIndex(monthIndex(y, m) - n + 1)
	return MonthKeysBetween(start, end, n)
}
