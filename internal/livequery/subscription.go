package livequery

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrSubscriptionClosed is returned by First when the subscription ends before emitting
var ErrSubscriptionClosed = errors.New("subscription closed")

// QueryFunc produces the current result of a live query
type QueryFunc[T any] func(ctx context.Context) (T, error)

// Subscription delivers the latest result of a query every time it changes.
//
// Updates holds at most one pending value. A subscriber that falls behind skips
// intermediate results but always receives the newest one.
type Subscription[T any] struct {
	id      string
	updates chan T
	done    chan struct{}
	cancel  context.CancelFunc

	errMu sync.Mutex
	err   error
}

// Watch subscribes to query, re-running it whenever one of tables is notified.
// It returns immediately; the first result is delivered asynchronously.
// The subscription ends when ctx is cancelled, Close is called, the hub stops
// or the query fails.
func Watch[T any](ctx context.Context, h *Hub, query QueryFunc[T], tables ...string) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		updates: make(chan T, 1),
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	sub := h.register(tables)
	if sub == nil {
		s.fail(ErrHubStopped)
		close(s.updates)
		close(s.done)
		cancel()
		return s
	}
	s.id = sub.id

	go s.run(ctx, h, sub, query)
	return s
}

// ID returns the subscriber identifier
func (s *Subscription[T]) ID() string {
	return s.id
}

// Updates returns the channel results are delivered on.
// It is closed when the subscription ends.
func (s *Subscription[T]) Updates() <-chan T {
	return s.updates
}

// Done is closed when the subscription has ended
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Err returns the reason the subscription ended, or nil while it is active
// and after a plain Close.
func (s *Subscription[T]) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close releases the subscription and waits for its goroutine to exit
func (s *Subscription[T]) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscription[T]) fail(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

// run is the per-subscription loop: query, publish, wait for a change
func (s *Subscription[T]) run(ctx context.Context, h *Hub, sub *subscriber, query QueryFunc[T]) {
	defer h.running.Done()
	defer close(s.done)
	defer close(s.updates)
	defer h.unregister(sub)
	defer s.cancel()

	var (
		last      T
		published bool
	)

	for {
		value, err := query(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if h.Stopped() {
				s.fail(ErrHubStopped)
				return
			}
			log.Error().Err(err).Str("subscriber_id", sub.id).Msg("Live query failed")
			s.fail(err)
			return
		}

		if !published || !reflect.DeepEqual(last, value) {
			s.publish(value)
			last = value
			published = true
		}

		select {
		case <-ctx.Done():
			return
		case <-h.done:
			s.fail(ErrHubStopped)
			return
		case <-sub.dirty:
		}
	}
}

// publish replaces any undelivered value with v. Only run sends on updates,
// so after draining there is always room.
func (s *Subscription[T]) publish(v T) {
	select {
	case s.updates <- v:
		return
	default:
	}

	select {
	case <-s.updates:
		log.Trace().Str("subscriber_id", s.id).Msg("Subscriber behind, replacing pending result")
	default:
	}
	s.updates <- v
}

// First waits for the first result of s, then closes it
func First[T any](ctx context.Context, s *Subscription[T]) (T, error) {
	defer s.Close()

	var zero T
	select {
	case v, ok := <-s.Updates():
		if ok {
			return v, nil
		}
		if err := s.Err(); err != nil {
			return zero, err
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, ErrSubscriptionClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
