package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/classbook-backend/internal/calendar"
	"github.com/stemsi/classbook-backend/internal/model"
)

func TestSeriesZeroFills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createMaths(t)

	for _, d := range []calendar.Date{febMon, lastMon, today} {
		_, err := f.ledger.MarkCompleted(ctx, c.ID, owner, d)
		require.NoError(t, err)
	}

	series, err := f.stats.Series(ctx, owner, []string{"2024-03", "2024-01", "2024-02"})
	require.NoError(t, err)
	assert.Equal(t, []model.MonthCount{
		{MonthKey: "2024-03", Count: 2},
		{MonthKey: "2024-01", Count: 0},
		{MonthKey: "2024-02", Count: 1},
	}, series, "requested order is kept")

	recent, err := f.stats.RecentSeries(ctx, owner, 0)
	require.NoError(t, err)
	assert.Equal(t, []model.MonthCount{
		{MonthKey: "2024-01", Count: 0},
		{MonthKey: "2024-02", Count: 1},
		{MonthKey: "2024-03", Count: 2},
	}, recent)

	_, err = f.stats.Series(ctx, owner, []string{"2024-3"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCountsByMonthForClass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createMaths(t)

	for _, d := range []calendar.Date{febMon, lastMon, today} {
		_, err := f.ledger.MarkCompleted(ctx, c.ID, owner, d)
		require.NoError(t, err)
	}

	counts, err := f.stats.CountsByMonthForClass(ctx, c.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2024-02": 1, "2024-03": 2}, counts)

	_, err = f.stats.CountsByMonthForClass(ctx, c.ID, stranger)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	maths := f.createMaths(t)

	in := mathsInput()
	in.Title = "Paused"
	paused, err := f.classes.Create(ctx, owner, in)
	require.NoError(t, err)
	_, err = f.classes.SetActive(ctx, paused.ID, owner, false)
	require.NoError(t, err)

	_, err = f.ledger.MarkCompleted(ctx, maths.ID, owner, today)
	require.NoError(t, err)

	dash, err := f.stats.Dashboard(ctx, owner)
	require.NoError(t, err)

	assert.Equal(t, today, dash.Date)
	assert.Equal(t, calendar.Wednesday, dash.Weekday)
	assert.Equal(t, "2024-03", dash.MonthKey)
	assert.Equal(t, 1, dash.ActiveClasses)
	assert.Equal(t, 2, dash.TotalClasses)
	require.Len(t, dash.Today, 1, "paused classes are not on the agenda")
	assert.Equal(t, maths.ID, dash.Today[0].Class.ID)
	assert.True(t, dash.CompletedToday.Has(maths.ID))
	assert.Equal(t, 1, dash.MonthCount)
	assert.Len(t, dash.Series, 3)

	// Thursday 7th through Wednesday 13th: Monday 11th and Wednesday 13th.
	require.Len(t, dash.Upcoming, 2)
	assert.Equal(t, nextMon, dash.Upcoming[0].Date)
	assert.Equal(t, nextMon.AddDays(2), dash.Upcoming[1].Date)
}

func TestWatchDashboardFollowsClassChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.stats.WatchDashboard(ctx, owner)
	require.NoError(t, err)
	defer sub.Cancel()

	first := nextSnapshot(t, sub.Snapshots())
	require.NoError(t, first.Err)
	assert.Equal(t, 0, first.Items.TotalClasses)

	f.createMaths(t)

	second := nextSnapshot(t, sub.Snapshots())
	require.NoError(t, second.Err)
	assert.Equal(t, 1, second.Items.TotalClasses)
	assert.Len(t, second.Items.Today, 1)
}

func TestUpcomingDefaultsDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createMaths(t)

	agenda, err := f.stats.Upcoming(ctx, owner, 0)
	require.NoError(t, err)
	assert.Len(t, agenda, 2)

	agenda, err = f.stats.Upcoming(ctx, owner, 14)
	require.NoError(t, err)
	assert.Len(t, agenda, 4)

	date, sessions, err := f.stats.Today(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, today, date)
	assert.Len(t, sessions, 1)
}
