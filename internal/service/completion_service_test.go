package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/classbook-backend/internal/calendar"
	"github.com/stemsi/classbook-backend/internal/live"
)

func TestMarkCompletedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createMaths(t)

	first, err := f.ledger.MarkCompleted(ctx, c.ID, owner, calendar.Date{})
	require.NoError(t, err)
	assert.Equal(t, c.ID+"_2024-03-06", first.ID)
	assert.Equal(t, "2024-03", first.MonthKey)

	_, err = f.ledger.MarkCompleted(ctx, c.ID, owner, today)
	require.NoError(t, err)

	n, err := f.stats.CountForMonth(ctx, owner, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "marking twice counts once")

	done, err := f.ledger.IsCompleted(ctx, c.ID, today)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = f.ledger.IsCompleted(ctx, c.ID, lastMon)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestMarkCompletedRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createMaths(t)

	_, err := f.ledger.MarkCompleted(ctx, c.ID, owner, yesterday)
	assert.Contains(t, validationFields(t, err), "date", "Tuesday is not on the schedule")

	_, err = f.ledger.MarkCompleted(ctx, c.ID, owner, nextMon)
	assert.Contains(t, validationFields(t, err), "date", "future dates are rejected")

	_, err = f.ledger.MarkCompleted(ctx, c.ID, stranger, today)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.ledger.MarkCompleted(ctx, "missing", owner, today)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.classes.SetActive(ctx, c.ID, owner, false)
	require.NoError(t, err)
	_, err = f.ledger.MarkCompleted(ctx, c.ID, owner, today)
	assert.Contains(t, validationFields(t, err), "date", "paused classes hold no sessions")

	set, err := f.ledger.CompletedOn(ctx, today, owner)
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestCompletedOnAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	maths := f.createMaths(t)

	in := mathsInput()
	in.Title = "Physics"
	physics, err := f.classes.Create(ctx, owner, in)
	require.NoError(t, err)

	for _, d := range []calendar.Date{febMon, lastMon, today} {
		_, err := f.ledger.MarkCompleted(ctx, maths.ID, owner, d)
		require.NoError(t, err)
	}
	_, err = f.ledger.MarkCompleted(ctx, physics.ID, owner, lastMon)
	require.NoError(t, err)

	set, err := f.ledger.CompletedOn(ctx, lastMon, owner)
	require.NoError(t, err)
	assert.True(t, set.Has(maths.ID))
	assert.True(t, set.Has(physics.ID))

	set, err = f.ledger.CompletedOn(ctx, lastMon, stranger)
	require.NoError(t, err)
	assert.Empty(t, set, "other owners' records are never visible")

	history, err := f.ledger.History(ctx, maths.ID, owner)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "2024-02-26", history[0].Date)
	assert.Equal(t, "2024-03-06", history[2].Date)

	_, err = f.ledger.History(ctx, maths.ID, stranger)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestWatchCompletedOn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createMaths(t)

	sub, err := f.ledger.WatchCompletedOn(ctx, today, owner)
	require.NoError(t, err)
	defer sub.Cancel()

	first := nextSnapshot(t, sub.Snapshots())
	require.NoError(t, first.Err)
	assert.Empty(t, first.Items)

	_, err = f.ledger.MarkCompleted(ctx, c.ID, owner, today)
	require.NoError(t, err)

	second := nextSnapshot(t, sub.Snapshots())
	require.NoError(t, second.Err)
	assert.Greater(t, second.Seq, first.Seq)
	assert.True(t, second.Items.Has(c.ID))
}

func nextSnapshot[T any](t *testing.T, ch <-chan live.Snapshot[T]) live.Snapshot[T] {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
		return live.Snapshot[T]{}
	}
}
