package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/classbook-backend/internal/metrics"
	"github.com/stemsi/classbook-backend/internal/service"
)

// fakeApplier fails the first failures calls, then records tasks.
type fakeApplier struct {
	mu       sync.Mutex
	failures int
	calls    int
	applied  []service.IndexTask
}

func (a *fakeApplier) ApplyIndexTask(_ context.Context, task service.IndexTask) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.calls <= a.failures {
		return errors.New("store unavailable")
	}
	a.applied = append(a.applied, task)
	return nil
}

func (a *fakeApplier) snapshot() (int, []service.IndexTask) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls, append([]service.IndexTask(nil), a.applied...)
}

func TestLocalIndexQueueAppliesInOrder(t *testing.T) {
	m := metrics.New()
	applier := &fakeApplier{}
	q := NewLocalIndexQueue(8, m, zerolog.Nop())
	q.SetApplier(applier)

	tasks := []service.IndexTask{
		{Op: service.IndexOpAdd, OwnerID: "u1", ClassID: "c1"},
		{Op: service.IndexOpRemove, OwnerID: "u1", ClassID: "c1"},
	}
	for _, task := range tasks {
		require.NoError(t, q.Enqueue(context.Background(), task))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, applied := applier.snapshot()
		return len(applied) == 2
	}, time.Second, 10*time.Millisecond)
	cancel()
	<-done

	_, applied := applier.snapshot()
	assert.Equal(t, tasks, applied)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexTasks.WithLabelValues("add", "ok")))
}

func TestLocalIndexQueueRetries(t *testing.T) {
	applier := &fakeApplier{failures: 2}
	q := NewLocalIndexQueue(1, nil, zerolog.Nop())
	q.SetApplier(applier)
	q.retryDelay = time.Millisecond

	q.apply(context.Background(), service.IndexTask{Op: service.IndexOpReconcile, OwnerID: "u1"})

	calls, applied := applier.snapshot()
	assert.Equal(t, 3, calls)
	assert.Len(t, applied, 1)
}

func TestLocalIndexQueueGivesUp(t *testing.T) {
	applier := &fakeApplier{failures: 10}
	q := NewLocalIndexQueue(1, nil, zerolog.Nop())
	q.SetApplier(applier)
	q.retryDelay = time.Millisecond

	q.apply(context.Background(), service.IndexTask{Op: service.IndexOpAdd, OwnerID: "u1"})

	calls, applied := applier.snapshot()
	assert.Equal(t, localMaxAttempts, calls)
	assert.Empty(t, applied)
}

func TestLocalIndexQueueFull(t *testing.T) {
	q := NewLocalIndexQueue(1, nil, zerolog.Nop())
	task := service.IndexTask{Op: service.IndexOpAdd, OwnerID: "u1"}

	require.NoError(t, q.Enqueue(context.Background(), task))
	assert.ErrorIs(t, q.Enqueue(context.Background(), task), ErrQueueFull)
}

func TestLocalIndexQueueDrainsOnShutdown(t *testing.T) {
	applier := &fakeApplier{}
	q := NewLocalIndexQueue(4, nil, zerolog.Nop())
	q.SetApplier(applier)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(context.Background(), service.IndexTask{Op: service.IndexOpReconcile, OwnerID: "u1"}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.Start(ctx)

	_, applied := applier.snapshot()
	assert.Len(t, applied, 3)
}

func TestIndexWorkerHandle(t *testing.T) {
	m := metrics.New()
	applier := &fakeApplier{failures: 1}
	w := NewIndexWorker(nil, applier, m, zerolog.Nop())
	ctx := context.Background()

	assert.NoError(t, w.handle(ctx, "not json"), "undecodable payloads are dropped")

	raw := `{"op":"remove","owner_id":"u1","class_id":"c1"}`
	assert.Error(t, w.handle(ctx, raw), "applier errors are returned for requeue")
	require.NoError(t, w.handle(ctx, raw))

	_, applied := applier.snapshot()
	assert.Equal(t, []service.IndexTask{{Op: service.IndexOpRemove, OwnerID: "u1", ClassID: "c1"}}, applied)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexTasks.WithLabelValues("remove", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexTasks.WithLabelValues("remove", "ok")))
}

func TestNextAttemptStopsAtLimit(t *testing.T) {
	raw := `{"op":"add","owner_id":"u1","class_id":"c1"}`
	for i := 1; i < IndexMaxAttempts; i++ {
		next, ok := nextAttempt(raw)
		require.True(t, ok, "attempt %d", i)

		var task service.IndexTask
		require.NoError(t, json.Unmarshal([]byte(next), &task))
		assert.Equal(t, i, task.Attempts)
		assert.Equal(t, "c1", task.ClassID)
		raw = next
	}
	_, ok := nextAttempt(raw)
	assert.False(t, ok)

	_, ok = nextAttempt("not json")
	assert.False(t, ok)
}

func TestIndexWorkerRetryLogsFailures(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	var buf bytes.Buffer
	w := NewIndexWorker(rdb, &fakeApplier{}, nil, zerolog.New(&buf))

	w.retry(context.Background(), `{"op":"add","owner_id":"u1","class_id":"c1"}`)
	assert.Contains(t, buf.String(), "Requeue failed")

	buf.Reset()
	w.retry(context.Background(), fmt.Sprintf(`{"op":"add","owner_id":"u1","attempts":%d}`, IndexMaxAttempts-1))
	assert.Contains(t, buf.String(), "Giving up on index task")
	assert.NotContains(t, buf.String(), "Requeue failed")
}

type fakeReconciler struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *fakeReconciler) ReconcileAll(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return 2, r.err
}

func TestIndexReconciler(t *testing.T) {
	rec := &fakeReconciler{}
	r, err := NewIndexReconciler("30 3 * * *", time.UTC, rec, zerolog.Nop())
	require.NoError(t, err)

	r.Run()
	rec.err = errors.New("partial failure")
	r.Run()
	assert.Equal(t, 2, rec.calls)

	r.Start()
	r.Stop()
}

func TestIndexReconcilerRejectsBadSchedule(t *testing.T) {
	_, err := NewIndexReconciler("every night", time.UTC, &fakeReconciler{}, zerolog.Nop())
	assert.Error(t, err)
}
