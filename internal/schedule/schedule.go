// Package schedule projects weekly class schedules onto civil dates.
package schedule

import (
	"sort"

	"github.com/stemsi/classbook-backend/internal/calendar"
	"github.com/stemsi/classbook-backend/internal/model"
)

// Window is the start/end time of one session.
type Window struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Session pairs a class with the window it runs in on a given date.
type Session struct {
	Class  *model.Class `json:"class"`
	Window Window       `json:"window"`
}

// AgendaDay groups the sessions of one date.
type AgendaDay struct {
	Date     calendar.Date    `json:"date"`
	Weekday  calendar.Weekday `json:"weekday"`
	Sessions []Session        `json:"sessions"`
}

// OccursOn reports whether c holds a session on date. Inactive classes never do.
func OccursOn(c *model.Class, date calendar.Date) bool {
	if !c.Active {
		return false
	}
	_, ok := c.EntryFor(date.Weekday())
	return ok
}

// SessionWindow returns the window c runs in on date's weekday, or nil.
// It ignores the active flag.
func SessionWindow(c *model.Class, date calendar.Date) *Window {
	e, ok := c.EntryFor(date.Weekday())
	if !ok {
		return nil
	}
	return &Window{StartTime: e.StartTime, EndTime: e.EndTime}
}

// On returns the sessions held on date, in the order classes were given.
func On(classes []model.Class, date calendar.Date) []Session {
	sessions := []Session{}
	for i := range classes {
		c := &classes[i]
		if !OccursOn(c, date) {
			continue
		}
		sessions = append(sessions, Session{Class: c, Window: *SessionWindow(c, date)})
	}
	return sessions
}

// Agenda projects the days after from, through from+days, omitting days with
// no sessions. from itself is not included.
func Agenda(classes []model.Class, from calendar.Date, days int) []AgendaDay {
	agenda := []AgendaDay{}
	for i := 1; i <= days; i++ {
		date := from.AddDays(i)
		sessions := On(classes, date)
		if len(sessions) == 0 {
			continue
		}
		agenda = append(agenda, AgendaDay{Date: date, Weekday: date.Weekday(), Sessions: sessions})
	}
	return agenda
}

// SortedSchedule returns a copy of entries ordered Monday through Sunday.
func SortedSchedule(entries []model.ScheduleEntry) []model.ScheduleEntry {
	out := make([]model.ScheduleEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Day.Index() < out[j].Day.Index()
	})
	return out
}
