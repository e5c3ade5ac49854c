package live

import (
	"context"
	"sync"
)

// QueryFunc loads the current result set of a subscription.
type QueryFunc[T any] func(ctx context.Context) (T, error)

// Snapshot is one delivery of a subscription. Seq increases strictly.
type Snapshot[T any] struct {
	Seq   uint64
	Items T
	Err   error
}

// Subscription re-runs a query every time its topic is signalled and
// delivers the full result set. Cancel it to stop; watch again to restart.
type Subscription[T any] struct {
	snapshots chan Snapshot[T]
	cancel    context.CancelFunc
	done      chan struct{}
	once      sync.Once
}

// Watch subscribes to every topic, delivers an initial snapshot, then one
// snapshot per (coalesced) signal on any of them until ctx ends or Cancel is
// called.
func Watch[T any](ctx context.Context, n Notifier, topics []string, query QueryFunc[T]) (*Subscription[T], error) {
	signals, unsubscribe, err := subscribeAll(ctx, n, topics)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		snapshots: make(chan Snapshot[T]),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer close(s.snapshots)
		defer unsubscribe()

		var seq uint64
		deliver := func() bool {
			items, err := query(ctx)
			if ctx.Err() != nil {
				return false
			}
			seq++
			select {
			case s.snapshots <- Snapshot[T]{Seq: seq, Items: items, Err: err}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !deliver() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok || !deliver() {
					return
				}
			}
		}
	}()

	return s, nil
}

// Snapshots returns the delivery channel. It is closed after Cancel.
func (s *Subscription[T]) Snapshots() <-chan Snapshot[T] {
	return s.snapshots
}

// Cancel unregisters the listener and waits for the stream to close.
// It is safe to call more than once.
func (s *Subscription[T]) Cancel() {
	s.once.Do(s.cancel)
	<-s.done
}

// subscribeAll merges the signal channels of several topics into one.
func subscribeAll(ctx context.Context, n Notifier, topics []string) (<-chan struct{}, func(), error) {
	if len(topics) == 1 {
		return n.Subscribe(ctx, topics[0])
	}

	var unsubs []func()
	closeAll := func() {
		for _, u := range unsubs {
			u()
		}
	}

	merged := make(chan struct{}, 1)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for _, topic := range topics {
		ch, unsub, err := n.Subscribe(ctx, topic)
		if err != nil {
			close(stop)
			closeAll()
			wg.Wait()
			return nil, nil, err
		}
		unsubs = append(unsubs, unsub)

		wg.Add(1)
		go func(ch <-chan struct{}) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				case _, ok := <-ch:
					if !ok {
						return
					}
					select {
					case merged <- struct{}{}:
					default:
					}
				}
			}
		}(ch)
	}

	var once sync.Once
	return merged, func() {
		once.Do(func() {
			close(stop)
			closeAll()
			wg.Wait()
		})
	}, nil
}
