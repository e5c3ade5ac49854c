package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classbook-backend/internal/config"
	"github.com/stemsi/classbook-backend/internal/metrics"
	"github.com/stemsi/classbook-backend/internal/service"
)

const (
	IndexPollTimeout = time.Second
	IndexRetryDelay  = 5 * time.Second
	// IndexMaxAttempts bounds how often one task is applied before it is
	// dropped. IndexReconciler repairs whatever a dropped task left behind.
	IndexMaxAttempts = 5
)

// IndexApplier applies one owner-index task. *service.ClassService is one.
type IndexApplier interface {
	ApplyIndexTask(ctx context.Context, task service.IndexTask) error
}

// RedisIndexQueue pushes index tasks onto owner_index_queue.
type RedisIndexQueue struct {
	rdb *redis.Client
}

// NewRedisIndexQueue creates a new RedisIndexQueue.
func NewRedisIndexQueue(rdb *redis.Client) *RedisIndexQueue {
	return &RedisIndexQueue{rdb: rdb}
}

func (q *RedisIndexQueue) Enqueue(ctx context.Context, task service.IndexTask) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.rdb.RPush(ctx, config.WorkerKey.OwnerIndexQueue, raw).Err()
}

// IndexWorker consumes owner_index_queue and applies each task.
type IndexWorker struct {
	rdb     *redis.Client
	applier IndexApplier
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewIndexWorker creates a new IndexWorker. m may be nil.
func NewIndexWorker(rdb *redis.Client, applier IndexApplier, m *metrics.Metrics, log zerolog.Logger) *IndexWorker {
	return &IndexWorker{
		rdb:     rdb,
		applier: applier,
		metrics: m,
		log:     log.With().Str("component", "index_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *IndexWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *IndexWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, IndexPollTimeout, config.WorkerKey.OwnerIndexQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			time.Sleep(IndexPollTimeout)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.handle(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Msg("Index task failed")
		w.retry(context.WithoutCancel(ctx), result[1])
		time.Sleep(IndexRetryDelay)
	}
}

// handle applies one raw task. Undecodable payloads are dropped.
func (w *IndexWorker) handle(ctx context.Context, raw string) error {
	var task service.IndexTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		w.log.Error().Err(err).Str("payload", raw).Msg("Unmarshal error, dropping task")
		return nil
	}

	err := w.applier.ApplyIndexTask(ctx, task)
	w.observe(task, err)
	if err != nil {
		return fmt.Errorf("%s owner %s: %w", task.Op, task.OwnerID, err)
	}
	return nil
}

// nextAttempt returns raw with its attempt count bumped, or false once the
// task has used all of its attempts.
func nextAttempt(raw string) (string, bool) {
	var task service.IndexTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return "", false
	}
	task.Attempts++
	if task.Attempts >= IndexMaxAttempts {
		return "", false
	}
	out, err := json.Marshal(task)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// retry puts a failed task back at the tail of the queue.
func (w *IndexWorker) retry(ctx context.Context, raw string) {
	next, ok := nextAttempt(raw)
	if !ok {
		w.log.Error().Str("payload", raw).Msg("Giving up on index task; the next reconcile repairs it")
		return
	}
	if err := w.rdb.RPush(ctx, config.WorkerKey.OwnerIndexQueue, next).Err(); err != nil {
		w.log.Error().Err(err).Str("payload", next).Msg("Requeue failed; the next reconcile repairs it")
	}
}

func (w *IndexWorker) observe(task service.IndexTask, err error) {
	if w.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	w.metrics.IndexTasks.WithLabelValues(string(task.Op), result).Inc()
}

// drain applies everything left in the queue before shutdown.
func (w *IndexWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.OwnerIndexQueue).Result()
		if err != nil {
			break
		}
		if err := w.handle(ctx, raw); err != nil {
			w.log.Error().Err(err).Msg("Drain error")
			w.retry(ctx, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
