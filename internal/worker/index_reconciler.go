package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Reconciler rebuilds every owner's class index. *service.ClassService is one.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (int, error)
}

// IndexReconciler runs a full owner-index reconcile on a cron schedule, in
// the calendar's timezone.
type IndexReconciler struct {
	cron       *cron.Cron
	reconciler Reconciler
	timeout    time.Duration
	log        zerolog.Logger
}

// NewIndexReconciler parses expr (standard 5-field cron) and registers the job.
func NewIndexReconciler(expr string, loc *time.Location, reconciler Reconciler, log zerolog.Logger) (*IndexReconciler, error) {
	r := &IndexReconciler{
		reconciler: reconciler,
		timeout:    5 * time.Minute,
		log:        log.With().Str("component", "index_reconciler").Logger(),
	}
	r.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := r.cron.AddFunc(expr, r.Run); err != nil {
		return nil, fmt.Errorf("add reconcile schedule %q: %w", expr, err)
	}
	return r, nil
}

// Run performs one reconcile pass.
func (r *IndexReconciler) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	changed, err := r.reconciler.ReconcileAll(ctx)
	if err != nil {
		r.log.Error().Err(err).Int("changed", changed).Msg("Index reconcile finished with errors")
		return
	}
	r.log.Info().
		Int("changed", changed).
		Dur("took", time.Since(start)).
		Msg("Index reconcile finished")
}

// Start begins the schedule in its own goroutine.
func (r *IndexReconciler) Start() {
	r.cron.Start()
	r.log.Info().Msg("Index reconciler scheduled")
}

// Stop halts the schedule and waits for a running pass to finish.
func (r *IndexReconciler) Stop() {
	<-r.cron.Stop().Done()
}
