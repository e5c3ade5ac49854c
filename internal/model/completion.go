package model

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/stemsi/classbook-backend/internal/calendar"
)

// CompletionRecord marks that a scheduled session of a class took place on a
// civil date. There is at most one record per (ClassID, Date).
type CompletionRecord struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"class_id"`
	OwnerID     string    `json:"owner_id"`
	Date        string    `json:"date"`
	MonthKey    string    `json:"month_key"`
	CompletedAt time.Time `json:"completed_at"`
}

// CompletionID is the deterministic document key of a completion.
func CompletionID(classID string, date calendar.Date) string {
	return classID + "_" + date.String()
}

// NewCompletion builds the record for classID on date.
func NewCompletion(classID, ownerID string, date calendar.Date, at time.Time) *CompletionRecord {
	return &CompletionRecord{
		ID:          CompletionID(classID, date),
		ClassID:     classID,
		OwnerID:     ownerID,
		Date:        date.String(),
		MonthKey:    date.MonthKey(),
		CompletedAt: at,
	}
}

// MarkCompletedRequest is the payload for marking a session done. An empty
// date means today.
type MarkCompletedRequest struct {
	Date string `json:"date" binding:"omitempty,datetime=2006-01-02"`
}

// MonthCount is one point of a monthly completion series.
type MonthCount struct {
	MonthKey string `json:"month_key"`
	Count    int    `json:"count"`
}

// ClassIDSet is a set of class ids. It encodes as a sorted JSON array.
type ClassIDSet map[string]struct{}

// Has reports membership.
func (s ClassIDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the members in ascending order.
func (s ClassIDSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s ClassIDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}
