package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/classbook-backend/internal/metrics"
	"github.com/stemsi/classbook-backend/internal/service"
)

// ErrQueueFull is returned when the in-process queue cannot take more tasks.
var ErrQueueFull = errors.New("index queue is full")

const localMaxAttempts = 3

// LocalIndexQueue is the in-process counterpart of RedisIndexQueue plus
// IndexWorker, used when no Redis is configured.
type LocalIndexQueue struct {
	tasks      chan service.IndexTask
	applier    IndexApplier
	metrics    *metrics.Metrics
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewLocalIndexQueue creates a queue holding up to size pending tasks. Call
// SetApplier before Start.
func NewLocalIndexQueue(size int, m *metrics.Metrics, log zerolog.Logger) *LocalIndexQueue {
	return &LocalIndexQueue{
		tasks:      make(chan service.IndexTask, size),
		metrics:    m,
		retryDelay: time.Second,
		log:        log.With().Str("component", "local_index_queue").Logger(),
	}
}

// SetApplier wires the consumer. The class service needs the queue at
// construction, so the two are connected afterwards.
func (q *LocalIndexQueue) SetApplier(a IndexApplier) {
	q.applier = a
}

func (q *LocalIndexQueue) Enqueue(_ context.Context, task service.IndexTask) error {
	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start applies tasks until ctx ends, then drains what is left.
func (q *LocalIndexQueue) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.drain()
			return
		case task := <-q.tasks:
			q.apply(ctx, task)
		}
	}
}

func (q *LocalIndexQueue) apply(ctx context.Context, task service.IndexTask) {
	for attempt := 1; ; attempt++ {
		err := q.applier.ApplyIndexTask(ctx, task)
		if q.metrics != nil {
			result := "ok"
			if err != nil {
				result = "error"
			}
			q.metrics.IndexTasks.WithLabelValues(string(task.Op), result).Inc()
		}
		if err == nil {
			return
		}
		if attempt == localMaxAttempts || ctx.Err() != nil {
			q.log.Error().Err(err).
				Str("op", string(task.Op)).
				Str("owner_id", task.OwnerID).
				Msg("Giving up on index task; the next reconcile repairs it")
			return
		}
		select {
		case <-ctx.Done():
		case <-time.After(q.retryDelay):
		}
	}
}

func (q *LocalIndexQueue) drain() {
	for {
		select {
		case task := <-q.tasks:
			q.apply(context.Background(), task)
		default:
			return
		}
	}
}
