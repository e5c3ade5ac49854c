package schedule

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/classbook-backend/internal/calendar"
	"github.com/stemsi/classbook-backend/internal/model"
)

func class(id string, active bool, entries ...model.ScheduleEntry) model.Class {
	return model.Class{ID: id, Active: active, Schedule: entries}
}

func entry(day calendar.Weekday, start, end string) model.ScheduleEntry {
	return model.ScheduleEntry{Day: day, StartTime: start, EndTime: end}
}

// 2024-03-04 is a Monday.
var monday = calendar.NewDate(2024, time.March, 4)

func TestOccursOn(t *testing.T) {
	c := class("math", true, entry(calendar.Monday, "09:00", "10:30"), entry(calendar.Thursday, "14:00", "15:00"))

	assert.True(t, OccursOn(&c, monday))
	assert.False(t, OccursOn(&c, monday.AddDays(1)))
	assert.True(t, OccursOn(&c, monday.AddDays(3)))

	c.Active = false
	assert.False(t, OccursOn(&c, monday))
}

func TestSessionWindow(t *testing.T) {
	c := class("math", false, entry(calendar.Monday, "09:00", "10:30"))

	w := SessionWindow(&c, monday)
	require.NotNil(t, w)
	assert.Equal(t, Window{StartTime: "09:00", EndTime: "10:30"}, *w)
	assert.Nil(t, SessionWindow(&c, monday.AddDays(1)))
}

func TestAgenda(t *testing.T) {
	classes := []model.Class{
		class("b", true, entry(calendar.Tuesday, "18:00", "19:00")),
		class("a", true, entry(calendar.Tuesday, "08:00", "09:00"), entry(calendar.Sunday, "10:00", "11:00")),
		class("off", false, entry(calendar.Wednesday, "08:00", "09:00")),
		class("mon", true, entry(calendar.Monday, "08:00", "09:00")),
	}

	agenda := Agenda(classes, monday, 7)

	require.Len(t, agenda, 3)
	assert.Equal(t, monday.AddDays(1), agenda[0].Date)
	assert.Equal(t, calendar.Tuesday, agenda[0].Weekday)
	require.Len(t, agenda[0].Sessions, 2)
	assert.Equal(t, "b", agenda[0].Sessions[0].Class.ID, "input order is kept")
	assert.Equal(t, "a", agenda[0].Sessions[1].Class.ID)

	assert.Equal(t, calendar.Sunday, agenda[1].Weekday)
	assert.Equal(t, monday.AddDays(7), agenda[2].Date, "the day a week out is included")
	assert.Equal(t, "mon", agenda[2].Sessions[0].Class.ID)
}

func TestAgendaExcludesFromDate(t *testing.T) {
	classes := []model.Class{class("mon", true, entry(calendar.Monday, "08:00", "09:00"))}

	assert.Empty(t, Agenda(classes, monday, 6))
	assert.Empty(t, Agenda(classes, monday, 0))
}

func TestSortedSchedule(t *testing.T) {
	in := []model.ScheduleEntry{
		entry(calendar.Sunday, "10:00", "11:00"),
		entry(calendar.Wednesday, "10:00", "11:00"),
		entry(calendar.Monday, "10:00", "11:00"),
	}

	out := SortedSchedule(in)

	assert.Equal(t, []calendar.Weekday{calendar.Monday, calendar.Wednesday, calendar.Sunday},
		[]calendar.Weekday{out[0].Day, out[1].Day, out[2].Day})
	assert.Equal(t, calendar.Sunday, in[0].Day, "input is not mutated")
}

func TestOccursOnProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("occurs iff weekday matches and class is active", prop.ForAll(
		func(dayIdx, offset int, active bool) bool {
			c := class("c", active, entry(calendar.Weekdays[dayIdx], "09:00", "10:00"))
			date := monday.AddDays(offset)
			want := active && date.Weekday() == calendar.Weekdays[dayIdx]
			return OccursOn(&c, date) == want
		},
		gen.IntRange(0, 6),
		gen.IntRange(-2000, 2000),
		gen.Bool(),
	))

	properties.Property("agenda days are ascending and within range", prop.ForAll(
		func(dayIdxs []int, days int) bool {
			var classes []model.Class
			for _, idx := range dayIdxs {
				classes = append(classes, class("c", true, entry(calendar.Weekdays[idx], "09:00", "10:00")))
			}
			prev := monday
			for _, day := range Agenda(classes, monday, days) {
				if !day.Date.After(prev) || day.Date.After(monday.AddDays(days)) || len(day.Sessions) == 0 {
					return false
				}
				prev = day.Date
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 6)),
		gen.IntRange(0, 31),
	))

	properties.TestingRun(t)
}
