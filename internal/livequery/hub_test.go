package livequery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

// counter is a query source whose result tests can change
type counter struct {
	value atomic.Int64
	runs  atomic.Int64
}

func (c *counter) query(ctx context.Context) (int64, error) {
	c.runs.Add(1)
	return c.value.Load(), nil
}

// waitFor reads updates until one equals want
func waitFor[T comparable](t *testing.T, sub *Subscription[T], want T) {
	t.Helper()

	deadline := time.After(waitTimeout)
	for {
		select {
		case got, ok := <-sub.Updates():
			if !ok {
				t.Fatalf("subscription closed before delivering %v (err: %v)", want, sub.Err())
			}
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v", want)
		}
	}
}

func TestWatch_DeliversInitialValue(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	c := &counter{}
	c.value.Store(5)

	sub := Watch(context.Background(), hub, c.query, "item")
	defer sub.Close()

	waitFor(t, sub, 5)
	if sub.ID() == "" {
		t.Fatal("expected subscriber id to be set")
	}
}

func TestNotify_RerunsMatchingSubscriptions(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	c := &counter{}
	sub := Watch(context.Background(), hub, c.query, "item")
	defer sub.Close()
	waitFor(t, sub, 0)

	c.value.Store(1)
	hub.Notify("item")
	waitFor(t, sub, 1)

	c.value.Store(2)
	hub.Notify("item")
	waitFor(t, sub, 2)
}

func TestNotify_IgnoresOtherTables(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	c := &counter{}
	sub := Watch(context.Background(), hub, c.query, "item")
	defer sub.Close()
	waitFor(t, sub, 0)

	runs := c.runs.Load()
	c.value.Store(9)
	hub.Notify("other")

	select {
	case v := <-sub.Updates():
		t.Fatalf("unexpected update %d for unrelated table", v)
	case <-time.After(100 * time.Millisecond):
	}
	if c.runs.Load() != runs {
		t.Fatal("expected query not to re-run for unrelated table")
	}
}

func TestNotifyAll_RerunsEverySubscription(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	c := &counter{}
	sub := Watch(context.Background(), hub, c.query, "item")
	defer sub.Close()
	waitFor(t, sub, 0)

	c.value.Store(3)
	hub.NotifyAll()
	waitFor(t, sub, 3)
}

func TestSubscription_SkipsUnchangedResults(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	c := &counter{}
	sub := Watch(context.Background(), hub, c.query, "item")
	defer sub.Close()
	waitFor(t, sub, 0)

	hub.Notify("item")

	select {
	case v := <-sub.Updates():
		t.Fatalf("unexpected duplicate update %d", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscription_SlowSubscriberGetsLatest(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	c := &counter{}
	sub := Watch(context.Background(), hub, c.query, "item")
	defer sub.Close()
	waitFor(t, sub, 0)

	for i := int64(1); i <= 50; i++ {
		c.value.Store(i)
		hub.Notify("item")
	}

	waitFor(t, sub, 50)
}

func TestSubscription_CloseUnregisters(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	c := &counter{}
	sub := Watch(context.Background(), hub, c.query, "item")
	waitFor(t, sub, 0)

	if hub.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.SubscriberCount())
	}

	sub.Close()

	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after close, got %d", hub.SubscriberCount())
	}
	if _, ok := <-sub.Updates(); ok {
		t.Fatal("expected updates channel to be closed")
	}
	if sub.Err() != nil {
		t.Fatalf("expected nil error after close, got %v", sub.Err())
	}
}

func TestSubscription_ContextCancelEnds(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	c := &counter{}
	sub := Watch(ctx, hub, c.query, "item")
	waitFor(t, sub, 0)

	cancel()

	select {
	case <-sub.Done():
	case <-time.After(waitTimeout):
		t.Fatal("subscription did not end after context cancel")
	}
}

func TestSubscription_QueryErrorEnds(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	boom := errors.New("disk on fire")
	sub := Watch(context.Background(), hub, func(ctx context.Context) (int, error) {
		return 0, boom
	}, "item")

	select {
	case <-sub.Done():
	case <-time.After(waitTimeout):
		t.Fatal("subscription did not end after query error")
	}
	if !errors.Is(sub.Err(), boom) {
		t.Fatalf("expected query error, got %v", sub.Err())
	}
}

func TestHubStop_EndsSubscriptions(t *testing.T) {
	hub := NewHub()

	c := &counter{}
	sub := Watch(context.Background(), hub, c.query, "item")
	waitFor(t, sub, 0)

	hub.Stop()
	hub.Stop()

	select {
	case <-sub.Done():
	case <-time.After(waitTimeout):
		t.Fatal("subscription did not end after hub stop")
	}
	if !errors.Is(sub.Err(), ErrHubStopped) {
		t.Fatalf("expected ErrHubStopped, got %v", sub.Err())
	}

	late := Watch(context.Background(), hub, c.query, "item")
	<-late.Done()
	if !errors.Is(late.Err(), ErrHubStopped) {
		t.Fatalf("expected ErrHubStopped for late subscription, got %v", late.Err())
	}
}

func TestFirst_ReturnsInitialValueAndCloses(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	c := &counter{}
	c.value.Store(9)

	got, err := First(context.Background(), Watch(context.Background(), hub, c.query, "item"))
	if err != nil {
		t.Fatalf("First returned error: %v", err)
	}
	if got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
	if n := hub.SubscriberCount(); n != 0 {
		t.Fatalf("expected First to release its subscriber, got %d", n)
	}
}

func TestFirst_ReportsStoppedHub(t *testing.T) {
	hub := NewHub()
	hub.Stop()

	c := &counter{}
	if _, err := First(context.Background(), Watch(context.Background(), hub, c.query, "item")); !errors.Is(err, ErrHubStopped) {
		t.Fatalf("expected ErrHubStopped, got %v", err)
	}
}

func TestHubStop_WaitsForRunningQuery(t *testing.T) {
	hub := NewHub()

	var runs atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	query := func(ctx context.Context) (int64, error) {
		if runs.Add(1) == 1 {
			return 0, nil
		}
		close(entered)
		<-release
		// the store is going away underneath the re-run
		return 0, errors.New("sql: database is closed")
	}

	sub := Watch(context.Background(), hub, query, "item")
	waitFor(t, sub, 0)

	hub.Notify("item")
	select {
	case <-entered:
	case <-time.After(waitTimeout):
		t.Fatal("query was not re-run")
	}

	stopped := make(chan struct{})
	go func() {
		hub.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a query was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(waitTimeout):
		t.Fatal("Stop did not return after the query finished")
	}

	if !errors.Is(sub.Err(), ErrHubStopped) {
		t.Fatalf("expected ErrHubStopped, got %v", sub.Err())
	}
}
