// Package memory is an in-process store with the same semantics as the
// Postgres repositories. It backs STORE_DRIVER=memory and the service tests.
package memory

import (
	"sync"
	"time"

	"github.com/stemsi/classbook-backend/internal/model"
)

// DB holds every table behind one lock, so multi-table writes are atomic.
type DB struct {
	mutex       sync.RWMutex
	now         func() time.Time
	classes     map[string]*model.Class
	classSeq    map[string]uint64
	nextSeq     uint64
	users       map[string]*model.User
	completions map[string]*model.CompletionRecord
	fees        map[string]*model.FeePeriod
	payments    map[string][]model.Payment
}

// NewDB creates an empty DB.
func NewDB() *DB {
	return &DB{
		now:         time.Now,
		classes:     make(map[string]*model.Class),
		classSeq:    make(map[string]uint64),
		users:       make(map[string]*model.User),
		completions: make(map[string]*model.CompletionRecord),
		fees:        make(map[string]*model.FeePeriod),
		payments:    make(map[string][]model.Payment),
	}
}

func copyClass(c *model.Class) model.Class {
	out := *c
	out.Schedule = append([]model.ScheduleEntry(nil), c.Schedule...)
	return out
}

func copyUser(u *model.User) model.User {
	out := *u
	out.OwnedClassIDs = append([]string{}, u.OwnedClassIDs...)
	return out
}
