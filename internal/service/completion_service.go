package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/classbook-backend/internal/calendar"
	"github.com/stemsi/classbook-backend/internal/config"
	"github.com/stemsi/classbook-backend/internal/live"
	"github.com/stemsi/classbook-backend/internal/metrics"
	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/stemsi/classbook-backend/internal/repository"
	"github.com/stemsi/classbook-backend/internal/schedule"
)

// CompletionService is the completion ledger: one record per class per civil
// date, however many times it is marked.
type CompletionService struct {
	completions CompletionStore
	classes     *ClassService
	cal         *calendar.Calendar
	notifier    live.Notifier
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewCompletionService creates a new CompletionService. m may be nil.
func NewCompletionService(
	completions CompletionStore,
	classes *ClassService,
	cal *calendar.Calendar,
	notifier live.Notifier,
	m *metrics.Metrics,
	log zerolog.Logger,
) *CompletionService {
	return &CompletionService{
		completions: completions,
		classes:     classes,
		cal:         cal,
		notifier:    notifier,
		metrics:     m,
		log:         log.With().Str("component", "completion_service").Logger(),
	}
}

// MarkCompleted records that the class held its session on date. A zero date
// means today. Repeating the call overwrites the same record.
//
// The class must belong to ownerID, be active and be scheduled on the
// weekday of date, and date must not be in the future.
func (s *CompletionService) MarkCompleted(ctx context.Context, classID, ownerID string, date calendar.Date) (*model.CompletionRecord, error) {
	today := s.cal.Today()
	if date.IsZero() {
		date = today
	}
	if date.After(today) {
		return nil, fieldError("date", "date cannot be in the future")
	}

	c, err := s.classes.GetOwned(ctx, classID, ownerID)
	if err != nil {
		return nil, err
	}
	if !schedule.OccursOn(c, date) {
		return nil, fieldError("date", fmt.Sprintf("class is not scheduled on %s (%s)", date, date.Weekday()))
	}

	rec := model.NewCompletion(classID, ownerID, date, s.cal.Now())
	if err := s.completions.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("upsert completion: %w", err)
	}
	if s.metrics != nil {
		s.metrics.Completions.Inc()
	}

	if err := s.notifier.Publish(ctx, config.CacheKey.OwnerCompletionsChannel(ownerID)); err != nil {
		s.log.Warn().Err(err).Str("owner_id", ownerID).Msg("Failed to publish completion")
	}
	return rec, nil
}

// IsCompleted reports whether a record exists for (classID, date).
func (s *CompletionService) IsCompleted(ctx context.Context, classID string, date calendar.Date) (bool, error) {
	_, err := s.completions.Get(ctx, model.CompletionID(classID, date))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("get completion: %w", err)
	}
}

// CompletedOn returns the ids of the owner's classes completed on date.
func (s *CompletionService) CompletedOn(ctx context.Context, date calendar.Date, ownerID string) (model.ClassIDSet, error) {
	records, err := s.completions.ListByOwnerDate(ctx, ownerID, date.String())
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	set := make(model.ClassIDSet, len(records))
	for _, r := range records {
		set[r.ClassID] = struct{}{}
	}
	return set, nil
}

// WatchCompletedOn streams CompletedOn snapshots, re-queried whenever the
// owner marks a completion.
func (s *CompletionService) WatchCompletedOn(ctx context.Context, date calendar.Date, ownerID string) (*live.Subscription[model.ClassIDSet], error) {
	return live.Watch(ctx, s.notifier, []string{config.CacheKey.OwnerCompletionsChannel(ownerID)},
		func(ctx context.Context) (model.ClassIDSet, error) {
			return s.CompletedOn(ctx, date, ownerID)
		})
}

// History returns the class's completion records, oldest first.
func (s *CompletionService) History(ctx context.Context, classID, ownerID string) ([]model.CompletionRecord, error) {
	if _, err := s.classes.GetOwned(ctx, classID, ownerID); err != nil {
		return nil, err
	}
	records, err := s.completions.ListByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return records, nil
}
