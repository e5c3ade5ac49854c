package model

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stemsi/classbook-backend/internal/calendar"
)

// ScheduleEntry is one weekly slot of a class. Times are zero-padded 24h
// "HH:MM" strings, so lexicographic order equals chronological order.
type ScheduleEntry struct {
	Day       calendar.Weekday `json:"day" binding:"required,weekday"`
	StartTime string           `json:"start_time" binding:"required,hhmm"`
	EndTime   string           `json:"end_time" binding:"required,hhmm"`
}

// Class is a recurring weekly class owned by one instructor.
type Class struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Location       string          `json:"location"`
	Capacity       int             `json:"capacity"`
	RatePerStudent decimal.Decimal `json:"rate_per_student"`
	Schedule       []ScheduleEntry `json:"schedule"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// EntryFor returns the schedule entry held for day, if any.
func (c *Class) EntryFor(day calendar.Weekday) (ScheduleEntry, bool) {
	for _, e := range c.Schedule {
		if e.Day == day {
			return e, true
		}
	}
	return ScheduleEntry{}, false
}

// ClassInput is the payload for creating or updating a class.
type ClassInput struct {
	Title          string          `json:"title" binding:"required,max=120"`
	Description    string          `json:"description" binding:"required,max=2000"`
	Location       string          `json:"location" binding:"required,max=200"`
	Capacity       int             `json:"capacity" binding:"required,gt=0"`
	RatePerStudent decimal.Decimal `json:"rate_per_student"`
	Schedule       []ScheduleEntry `json:"schedule" binding:"required,min=1,max=7,dive"`
	Active         *bool           `json:"active,omitempty"`
}

// SetActiveRequest toggles the soft-deactivation flag.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}
