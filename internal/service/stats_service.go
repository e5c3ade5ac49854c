package service

import (
	"context"
	"fmt"

	"github.com/stemsi/classbook-backend/internal/calendar"
	"github.com/stemsi/classbook-backend/internal/config"
	"github.com/stemsi/classbook-backend/internal/live"
	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/stemsi/classbook-backend/internal/schedule"
)

// StatsService rolls completion records up into monthly counts and builds
// the dashboard.
type StatsService struct {
	completions  CompletionStore
	classes      *ClassService
	ledger       *CompletionService
	cal          *calendar.Calendar
	notifier     live.Notifier
	agendaDays   int
	seriesMonths int
}

// NewStatsService creates a new StatsService.
func NewStatsService(
	completions CompletionStore,
	classes *ClassService,
	ledger *CompletionService,
	cal *calendar.Calendar,
	notifier live.Notifier,
	agendaDays, seriesMonths int,
) *StatsService {
	return &StatsService{
		completions:  completions,
		classes:      classes,
		ledger:       ledger,
		cal:          cal,
		notifier:     notifier,
		agendaDays:   agendaDays,
		seriesMonths: seriesMonths,
	}
}

// CountForMonth counts the owner's completions in monthKey.
func (s *StatsService) CountForMonth(ctx context.Context, ownerID, monthKey string) (int, error) {
	if err := validMonth(monthKey); err != nil {
		return 0, err
	}
	n, err := s.completions.CountByOwnerMonth(ctx, ownerID, monthKey)
	if err != nil {
		return 0, fmt.Errorf("count completions: %w", err)
	}
	return n, nil
}

// Series returns one count per requested month, in the order given, with
// zero for months that have no records.
func (s *StatsService) Series(ctx context.Context, ownerID string, monthKeys []string) ([]model.MonthCount, error) {
	for _, k := range monthKeys {
		if err := validMonth(k); err != nil {
			return nil, err
		}
	}
	counts, err := s.completions.CountByOwnerMonths(ctx, ownerID, monthKeys)
	if err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}

	series := make([]model.MonthCount, len(monthKeys))
	for i, k := range monthKeys {
		series[i] = model.MonthCount{MonthKey: k, Count: counts[k]}
	}
	return series, nil
}

// RecentSeries is Series over the n months ending with the current month.
// n <= 0 uses the configured default.
func (s *StatsService) RecentSeries(ctx context.Context, ownerID string, n int) ([]model.MonthCount, error) {
	if n <= 0 {
		n = s.seriesMonths
	}
	keys, err := calendar.LastMonths(s.cal.ThisMonth(), n)
	if err != nil {
		return nil, err
	}
	return s.Series(ctx, ownerID, keys)
}

// CountsByMonthForClass groups the class's completion records by month.
func (s *StatsService) CountsByMonthForClass(ctx context.Context, classID, ownerID string) (map[string]int, error) {
	records, err := s.ledger.History(ctx, classID, ownerID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.MonthKey]++
	}
	return counts, nil
}

// Dashboard is the owner's home screen in one payload.
type Dashboard struct {
	Date           calendar.Date        `json:"date"`
	Weekday        calendar.Weekday     `json:"weekday"`
	MonthKey       string               `json:"month_key"`
	ActiveClasses  int                  `json:"active_classes"`
	TotalClasses   int                  `json:"total_classes"`
	Today          []schedule.Session   `json:"today"`
	CompletedToday model.ClassIDSet     `json:"completed_today"`
	MonthCount     int                  `json:"month_count"`
	Series         []model.MonthCount   `json:"series"`
	Upcoming       []schedule.AgendaDay `json:"upcoming"`
}

// Dashboard assembles today's sessions, their completion state, the monthly
// series and the upcoming agenda.
func (s *StatsService) Dashboard(ctx context.Context, ownerID string) (*Dashboard, error) {
	classes, err := s.classes.ListOwned(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	today := s.cal.Today()

	completed, err := s.ledger.CompletedOn(ctx, today, ownerID)
	if err != nil {
		return nil, err
	}
	series, err := s.RecentSeries(ctx, ownerID, s.seriesMonths)
	if err != nil {
		return nil, err
	}
	monthCount, err := s.CountForMonth(ctx, ownerID, today.MonthKey())
	if err != nil {
		return nil, err
	}

	active := 0
	for i := range classes {
		if classes[i].Active {
			active++
		}
	}

	return &Dashboard{
		Date:           today,
		Weekday:        today.Weekday(),
		MonthKey:       today.MonthKey(),
		ActiveClasses:  active,
		TotalClasses:   len(classes),
		Today:          schedule.On(classes, today),
		CompletedToday: completed,
		MonthCount:     monthCount,
		Series:         series,
		Upcoming:       schedule.Agenda(classes, today, s.agendaDays),
	}, nil
}

// WatchDashboard re-assembles the dashboard whenever the owner's classes or
// completions change.
func (s *StatsService) WatchDashboard(ctx context.Context, ownerID string) (*live.Subscription[*Dashboard], error) {
	topics := []string{
		config.CacheKey.OwnerCompletionsChannel(ownerID),
		config.CacheKey.OwnerClassesChannel(ownerID),
	}
	return live.Watch(ctx, s.notifier, topics,
		func(ctx context.Context) (*Dashboard, error) {
			return s.Dashboard(ctx, ownerID)
		})
}

// Today lists the owner's sessions for the current date.
func (s *StatsService) Today(ctx context.Context, ownerID string) (calendar.Date, []schedule.Session, error) {
	classes, err := s.classes.ListOwned(ctx, ownerID)
	if err != nil {
		return calendar.Date{}, nil, err
	}
	today := s.cal.Today()
	return today, schedule.On(classes, today), nil
}

// Upcoming projects the owner's agenda for the days after today. days <= 0
// uses the configured default.
func (s *StatsService) Upcoming(ctx context.Context, ownerID string, days int) ([]schedule.AgendaDay, error) {
	if days <= 0 {
		days = s.agendaDays
	}
	classes, err := s.classes.ListOwned(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return schedule.Agenda(classes, s.cal.Today(), days), nil
}
