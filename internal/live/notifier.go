// Package live turns change notifications on a topic into a stream of
// re-queried result-set snapshots.
package live

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Notifier fans out "something changed" signals per topic.
type Notifier interface {
	Publish(ctx context.Context, topic string) error
	// Subscribe returns a signal channel and a function that unregisters it.
	// Signals may be coalesced.
	Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error)
}

// LocalNotifier is an in-process Notifier.
type LocalNotifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan struct{}
}

// NewLocalNotifier creates an empty LocalNotifier.
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[string]map[int]chan struct{})}
}

func (n *LocalNotifier) Publish(_ context.Context, topic string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[topic] {
		select {
		case ch <- struct{}{}:
		default: // a signal is already pending
		}
	}
	return nil
}

func (n *LocalNotifier) Subscribe(_ context.Context, topic string) (<-chan struct{}, func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan struct{}, 1)
	if n.subs[topic] == nil {
		n.subs[topic] = make(map[int]chan struct{})
	}
	n.subs[topic][id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[topic], id)
			if len(n.subs[topic]) == 0 {
				delete(n.subs, topic)
			}
		})
	}
	return ch, unsubscribe, nil
}

// RedisNotifier publishes signals over Redis Pub/Sub so every server
// instance sees writes made through any other.
type RedisNotifier struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisNotifier creates a RedisNotifier.
func NewRedisNotifier(rdb *redis.Client, log zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{
		rdb: rdb,
		log: log.With().Str("component", "redis_notifier").Logger(),
	}
}

func (n *RedisNotifier) Publish(ctx context.Context, topic string) error {
	return n.rdb.Publish(ctx, topic, "changed").Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error) {
	pubsub := n.rdb.Subscribe(ctx, topic)
	// Wait for confirmation so no publish between here and the first
	// snapshot query is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				n.log.Warn().Err(err).Str("topic", topic).Msg("Failed to close subscription")
			}
		})
	}
	return out, unsubscribe, nil
}
