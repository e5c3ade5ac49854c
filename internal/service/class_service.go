package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classbook-backend/internal/calendar"
	"github.com/stemsi/classbook-backend/internal/config"
	"github.com/stemsi/classbook-backend/internal/live"
	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/stemsi/classbook-backend/internal/repository"
	"github.com/stemsi/classbook-backend/internal/validator"
)

// IndexOp names an owner-index maintenance operation.
type IndexOp string

const (
	IndexOpAdd       IndexOp = "add"
	IndexOpRemove    IndexOp = "remove"
	IndexOpReconcile IndexOp = "reconcile"
)

// IndexTask is one queued change to a user's owned-class index.
type IndexTask struct {
	Op       IndexOp `json:"op"`
	OwnerID  string  `json:"owner_id"`
	ClassID  string  `json:"class_id,omitempty"`
	// Attempts counts failed applications so far.
	Attempts int     `json:"attempts,omitempty"`
}

// IndexQueue hands index tasks to a background worker.
type IndexQueue interface {
	Enqueue(ctx context.Context, task IndexTask) error
}

// ClassService is the class registry. Class.OwnerID is authoritative; the
// users' owned-class index is maintained best-effort beside it.
type ClassService struct {
	classes  ClassStore
	users    UserStore
	queue    IndexQueue
	notifier live.Notifier
	log      zerolog.Logger
}

// NewClassService creates a new ClassService.
func NewClassService(classes ClassStore, users UserStore, queue IndexQueue, notifier live.Notifier, log zerolog.Logger) *ClassService {
	return &ClassService{
		classes:  classes,
		users:    users,
		queue:    queue,
		notifier: notifier,
		log:      log.With().Str("component", "class_service").Logger(),
	}
}

// validateClassInput applies the binding tags and the cross-field rules that
// tags cannot express.
func validateClassInput(in *model.ClassInput) error {
	verr := newValidationError()
	for field, msg := range validator.Struct(in) {
		verr.add(field, msg)
	}
	if in.RatePerStudent.IsNegative() {
		verr.add("rate_per_student", "rate_per_student must be 0 or greater")
	} else if !model.MoneyFits(in.RatePerStudent) {
		verr.add("rate_per_student", moneyMessage("rate_per_student"))
	}

	seen := make(map[calendar.Weekday]int, len(in.Schedule))
	for i, e := range in.Schedule {
		prefix := fmt.Sprintf("schedule[%d]", i)
		if first, dup := seen[e.Day]; dup && e.Day != "" {
			verr.add(prefix+".day", fmt.Sprintf("%s is already scheduled in schedule[%d]", e.Day, first))
		} else {
			seen[e.Day] = i
		}
		if e.StartTime != "" && e.EndTime != "" && e.StartTime >= e.EndTime {
			verr.add(prefix+".end_time", "end_time must be after start_time")
		}
	}
	return verr.orNil()
}

// Create validates the input, stores the class and adds it to the owner's
// index. An index failure does not fail the call.
func (s *ClassService) Create(ctx context.Context, ownerID string, in *model.ClassInput) (*model.Class, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	if err := validateClassInput(in); err != nil {
		return nil, err
	}

	c := &model.Class{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		Active:  true,
	}
	applyInput(c, in)

	if err := s.classes.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create class: %w", err)
	}

	if err := s.users.AddOwnedClass(ctx, ownerID, c.ID); err != nil {
		s.indexFailed(ctx, &ConsistencyError{Op: string(IndexOpAdd), OwnerID: ownerID, ClassID: c.ID, Err: err},
			IndexTask{Op: IndexOpAdd, OwnerID: ownerID, ClassID: c.ID})
	}

	s.publish(ctx, ownerID)
	return c, nil
}

func applyInput(c *model.Class, in *model.ClassInput) {
	c.Title = in.Title
	c.Description = in.Description
	c.Location = in.Location
	c.Capacity = in.Capacity
	c.RatePerStudent = in.RatePerStudent
	c.Schedule = append([]model.ScheduleEntry(nil), in.Schedule...)
	if in.Active != nil {
		c.Active = *in.Active
	}
}

// GetOwned returns the class if callerID owns it.
func (s *ClassService) GetOwned(ctx context.Context, classID, callerID string) (*model.Class, error) {
	c, err := s.classes.Get(ctx, classID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get class: %w", err)
	}
	if c.OwnerID != callerID {
		return nil, ErrUnauthorized
	}
	return c, nil
}

// Update re-validates and overwrites a class owned by callerID.
func (s *ClassService) Update(ctx context.Context, classID, callerID string, in *model.ClassInput) (*model.Class, error) {
	c, err := s.GetOwned(ctx, classID, callerID)
	if err != nil {
		return nil, err
	}
	if err := validateClassInput(in); err != nil {
		return nil, err
	}

	applyInput(c, in)
	if err := s.classes.Update(ctx, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update class: %w", err)
	}

	s.publish(ctx, callerID)
	return c, nil
}

// SetActive soft-activates or deactivates a class.
func (s *ClassService) SetActive(ctx context.Context, classID, callerID string, active bool) (*model.Class, error) {
	c, err := s.GetOwned(ctx, classID, callerID)
	if err != nil {
		return nil, err
	}
	if c.Active == active {
		return c, nil
	}

	c.Active = active
	if err := s.classes.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update class: %w", err)
	}

	s.publish(ctx, callerID)
	return c, nil
}

// Delete removes a class owned by callerID. Index removal is queued and never
// fails the delete.
func (s *ClassService) Delete(ctx context.Context, classID, callerID string) error {
	if _, err := s.GetOwned(ctx, classID, callerID); err != nil {
		return err
	}
	if err := s.classes.Delete(ctx, classID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete class: %w", err)
	}

	task := IndexTask{Op: IndexOpRemove, OwnerID: callerID, ClassID: classID}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.indexFailed(ctx, &ConsistencyError{Op: string(IndexOpRemove), OwnerID: callerID, ClassID: classID, Err: err}, task)
	}

	s.publish(ctx, callerID)
	return nil
}

// ListOwned returns the owner's classes from the classes collection. When
// the owner's index disagrees, a reconcile is queued.
func (s *ClassService) ListOwned(ctx context.Context, ownerID string) ([]model.Class, error) {
	classes, err := s.classes.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}

	s.readRepair(ctx, ownerID, classes)
	return classes, nil
}

func (s *ClassService) readRepair(ctx context.Context, ownerID string, classes []model.Class) {
	u, err := s.users.Get(ctx, ownerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.log.Warn().Err(err).Str("owner_id", ownerID).Msg("Skipping index check")
		return
	}

	var indexed []string
	if u != nil {
		indexed = u.OwnedClassIDs
	}
	if sameIDs(indexed, classIDs(classes)) {
		return
	}

	task := IndexTask{Op: IndexOpReconcile, OwnerID: ownerID}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.log.Warn().Err(err).Str("owner_id", ownerID).Msg("Failed to queue index reconcile")
		return
	}
	s.log.Debug().Str("owner_id", ownerID).Msg("Owner index out of sync, reconcile queued")
}

// ApplyIndexTask performs a queued index change. Workers call it.
func (s *ClassService) ApplyIndexTask(ctx context.Context, task IndexTask) error {
	switch task.Op {
	case IndexOpAdd:
		return s.users.AddOwnedClass(ctx, task.OwnerID, task.ClassID)
	case IndexOpRemove:
		return s.users.RemoveOwnedClass(ctx, task.OwnerID, task.ClassID)
	case IndexOpReconcile:
		_, err := s.ReconcileOwner(ctx, task.OwnerID)
		return err
	default:
		return fmt.Errorf("unknown index op %q", task.Op)
	}
}

// ReconcileOwner rebuilds the owner's index from the classes collection and
// reports whether it had to change anything.
func (s *ClassService) ReconcileOwner(ctx context.Context, ownerID string) (bool, error) {
	classes, err := s.classes.ListByOwner(ctx, ownerID)
	if err != nil {
		return false, fmt.Errorf("list classes: %w", err)
	}
	want := classIDs(classes)

	u, err := s.users.Get(ctx, ownerID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if len(want) == 0 {
			return false, nil
		}
	case err != nil:
		return false, fmt.Errorf("get user: %w", err)
	case sameIDs(u.OwnedClassIDs, want):
		return false, nil
	}

	if err := s.users.SetOwnedClasses(ctx, ownerID, want); err != nil {
		return false, fmt.Errorf("set owned classes: %w", err)
	}
	s.log.Info().Str("owner_id", ownerID).Int("classes", len(want)).Msg("Owner index reconciled")
	return true, nil
}

// ReconcileAll reconciles every user and every class owner. It returns how
// many indexes changed.
func (s *ClassService) ReconcileAll(ctx context.Context) (int, error) {
	userIDs, err := s.users.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	ownerIDs, err := s.classes.ListOwnerIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list owners: %w", err)
	}

	ids := make(map[string]struct{}, len(userIDs)+len(ownerIDs))
	for _, id := range append(userIDs, ownerIDs...) {
		ids[id] = struct{}{}
	}

	changed := 0
	var errs []error
	for id := range ids {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		ok, err := s.ReconcileOwner(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("owner %s: %w", id, err))
			continue
		}
		if ok {
			changed++
		}
	}
	return changed, errors.Join(errs...)
}

func (s *ClassService) indexFailed(ctx context.Context, cerr *ConsistencyError, repair IndexTask) {
	s.log.Warn().Err(cerr).
		Str("owner_id", cerr.OwnerID).
		Str("class_id", cerr.ClassID).
		Str("op", cerr.Op).
		Msg("Owner index write failed")

	if repair.Op == IndexOpRemove {
		// The remove itself could not be queued; a reconcile rebuilds the
		// index from classes regardless of what was lost.
		repair = IndexTask{Op: IndexOpReconcile, OwnerID: repair.OwnerID}
	}
	if err := s.queue.Enqueue(ctx, repair); err != nil {
		s.log.Warn().Err(err).Str("owner_id", cerr.OwnerID).Msg("Failed to queue index repair")
	}
}

func (s *ClassService) publish(ctx context.Context, ownerID string) {
	if err := s.notifier.Publish(ctx, config.CacheKey.OwnerClassesChannel(ownerID)); err != nil {
		s.log.Warn().Err(err).Str("owner_id", ownerID).Msg("Failed to publish class change")
	}
}

func classIDs(classes []model.Class) []string {
	ids := make([]string, len(classes))
	for i := range classes {
		ids[i] = classes[i].ID
	}
	return ids
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
