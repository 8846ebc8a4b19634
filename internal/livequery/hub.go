// Package livequery re-runs queries when the tables they read change and
// pushes the fresh results to subscribers.
//
// Writers call Hub.Notify after a commit. Each subscription owns one goroutine
// that waits for its tables to be marked dirty, re-runs its query and hands the
// result to the subscriber. Notify never blocks; a burst of changes collapses
// into a single re-run.
package livequery

import (
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrHubStopped is reported by subscriptions created on, or cut off by, a stopped hub
var ErrHubStopped = errors.New("live query hub stopped")

// subscriber is the hub-side record of a subscription
type subscriber struct {
	id     string
	tables []string
	dirty  chan struct{}
}

// watches reports whether the subscriber reads any of tables
func (s *subscriber) watches(tables []string) bool {
	for _, t := range tables {
		if slices.Contains(s.tables, t) {
			return true
		}
	}
	return false
}

// markDirty flags the subscriber for a re-run without blocking
func (s *subscriber) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
		// Already pending, the next run will see this change too
	}
}

// Hub tracks live query subscribers and fans table invalidations out to them
type Hub struct {
	subscribers map[string]*subscriber
	done        chan struct{}
	stopOnce    sync.Once
	mu          sync.RWMutex
	// running counts subscription goroutines; Stop waits for them
	running     sync.WaitGroup
}

// NewHub creates a new live query hub
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*subscriber),
		done:        make(chan struct{}),
	}
}

// Notify marks every subscriber reading any of tables as dirty
func (h *Hub) Notify(tables ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	notified := 0
	for _, sub := range h.subscribers {
		if sub.watches(tables) {
			sub.markDirty()
			notified++
		}
	}

	log.Trace().Strs("tables", tables).Int("subscribers", notified).Msg("Tables invalidated")
}

// NotifyAll marks every subscriber dirty regardless of the tables it reads.
// Used when the database file changed underneath us.
func (h *Hub) NotifyAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		sub.markDirty()
	}

	log.Trace().Int("subscribers", len(h.subscribers)).Msg("All live queries invalidated")
}

// SubscriberCount returns the number of active subscriptions
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Stop ends every subscription and waits for their goroutines to exit, so a
// query in flight finishes before the caller closes the database.
// Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		// register adds to running under mu, so no Add can race the Wait below
		h.mu.Lock()
		close(h.done)
		h.mu.Unlock()

		h.running.Wait()
		log.Debug().Msg("Live query hub stopped")
	})
}

// Stopped reports whether Stop has been called
func (h *Hub) Stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// register adds a subscriber for tables. Returns nil once the hub is stopped.
func (h *Hub) register(tables []string) *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.Stopped() {
		return nil
	}

	sub := &subscriber{
		id:     uuid.NewString(),
		tables: slices.Clone(tables),
		dirty:  make(chan struct{}, 1),
	}
	h.subscribers[sub.id] = sub
	h.running.Add(1)

	log.Debug().Str("subscriber_id", sub.id).Strs("tables", tables).Int("total_subscribers", len(h.subscribers)).Msg("Live query subscribed")
	return sub
}

// unregister removes a subscriber
func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub.id]; ok {
		delete(h.subscribers, sub.id)
		log.Debug().Str("subscriber_id", sub.id).Int("total_subscribers", len(h.subscribers)).Msg("Live query unsubscribed")
	}
}
