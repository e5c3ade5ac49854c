package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stemsi/classbook-backend/internal/calendar"
	"github.com/stemsi/classbook-backend/internal/model"
)

func validInput() model.ClassInput {
	return model.ClassInput{
		Title:       "Grade 10 Maths",
		Description: "Algebra revision",
		Location:    "Hall B",
		Capacity:    30,
		Schedule: []model.ScheduleEntry{
			{Day: calendar.Monday, StartTime: "09:00", EndTime: "10:30"},
		},
	}
}

func TestStructAcceptsValidInput(t *testing.T) {
	in := validInput()
	assert.Nil(t, Struct(&in))
}

func TestStructReportsFieldPaths(t *testing.T) {
	in := validInput()
	in.Title = ""
	in.Capacity = 0
	in.Schedule = append(in.Schedule, model.ScheduleEntry{Day: "Funday", StartTime: "9:00", EndTime: "24:00"})

	fields := Struct(&in)

	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "capacity")
	assert.Contains(t, fields, "schedule[1].day")
	assert.Contains(t, fields, "schedule[1].start_time")
	assert.Contains(t, fields, "schedule[1].end_time")
	assert.Equal(t, "start_time must be a 24-hour HH:MM time", fields["schedule[1].start_time"])
}

func TestStructRequiresSchedule(t *testing.T) {
	in := validInput()
	in.Schedule = nil

	assert.Contains(t, Struct(&in), "schedule")
}
