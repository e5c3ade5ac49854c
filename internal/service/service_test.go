package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/classbook-backend/internal/calendar"
	"github.com/stemsi/classbook-backend/internal/live"
	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/stemsi/classbook-backend/internal/repository/memory"
)

const (
	owner    = "user-owner"
	stranger = "user-stranger"
)

// Wednesday 2024-03-06, 10:00 in Colombo.
var (
	today     = calendar.NewDate(2024, time.March, 6)
	yesterday = today.AddDays(-1)
	lastMon   = calendar.NewDate(2024, time.March, 4)
	febMon    = calendar.NewDate(2024, time.February, 26)
	nextMon   = calendar.NewDate(2024, time.March, 11)
)

// recordingQueue keeps enqueued tasks so tests can apply them by hand.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []IndexTask
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, task IndexTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) drain() []IndexTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.tasks
	q.tasks = nil
	return out
}

type fixture struct {
	db       *memory.DB
	users    UserStore
	queue    *recordingQueue
	notifier *live.LocalNotifier
	cal      *calendar.Calendar

	classes *ClassService
	ledger  *CompletionService
	fees    *FeeService
	stats   *StatsService
}

type fixtureOption func(*fixture)

func withUsers(wrap func(*memory.UserRepository) UserStore) fixtureOption {
	return func(f *fixture) { f.users = wrap(memory.NewUserRepository(f.db)) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	now := time.Date(2024, time.March, 6, 4, 30, 0, 0, time.UTC)
	cal, err := calendar.Load("Asia/Colombo", calendar.FixedClock(now))
	require.NoError(t, err)

	f := &fixture{
		db:       memory.NewDB(),
		queue:    &recordingQueue{},
		notifier: live.NewLocalNotifier(),
		cal:      cal,
	}
	f.users = memory.NewUserRepository(f.db)
	for _, opt := range opts {
		opt(f)
	}

	log := zerolog.Nop()
	completions := memory.NewCompletionRepository(f.db)
	f.classes = NewClassService(memory.NewClassRepository(f.db), f.users, f.queue, f.notifier, log)
	f.ledger = NewCompletionService(completions, f.classes, cal, f.notifier, nil, log)
	f.fees = NewFeeService(memory.NewFeeRepository(f.db), f.classes, cal, f.notifier, nil, log)
	f.stats = NewStatsService(completions, f.classes, f.ledger, cal, f.notifier, 7, 3)
	return f
}

// applyQueued runs every queued index task, as the worker would.
func (f *fixture) applyQueued(t *testing.T) {
	t.Helper()
	for _, task := range f.queue.drain() {
		require.NoError(t, f.classes.ApplyIndexTask(context.Background(), task))
	}
}

func (f *fixture) ownedIDs(t *testing.T, userID string) []string {
	t.Helper()
	u, err := f.users.Get(context.Background(), userID)
	require.NoError(t, err)
	return u.OwnedClassIDs
}

// mathsInput runs Monday and Wednesday afternoons at 500 per student.
func mathsInput() *model.ClassInput {
	return &model.ClassInput{
		Title:          "Maths",
		Description:    "Grade 10 algebra",
		Location:       "Room 4",
		Capacity:       20,
		RatePerStudent: decimal.NewFromInt(500),
		Schedule: []model.ScheduleEntry{
			{Day: calendar.Wednesday, StartTime: "16:00", EndTime: "18:00"},
			{Day: calendar.Monday, StartTime: "16:00", EndTime: "18:00"},
		},
	}
}

func (f *fixture) createMaths(t *testing.T) *model.Class {
	t.Helper()
	c, err := f.classes.Create(context.Background(), owner, mathsInput())
	require.NoError(t, err)
	return c
}
