package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// writerQueueSize bounds how many mutations may wait for the writer
const writerQueueSize = 64

// Task is the pending result of a mutation handed to the background writer
type Task struct {
	done chan struct{}
	err  error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

// completedTask returns a task that has already finished with err
func completedTask(err error) *Task {
	t := newTask()
	t.finish(err)
	return t
}

func (t *Task) finish(err error) {
	t.err = err
	close(t.done)
}

// Done is closed once the mutation has been persisted or has failed
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the mutation's outcome. Only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the mutation completes or ctx is cancelled. A cancelled
// wait does not undo the mutation; it may still be applied afterwards.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type job struct {
	ctx  context.Context
	fn   func(context.Context) error
	task *Task
}

// writer runs mutations one at a time on a dedicated goroutine, so mutations
// submitted in order are applied in that order.
type writer struct {
	jobs   chan job
	closed bool
	mu     sync.RWMutex
	wg     sync.WaitGroup
}

func newWriter() *writer {
	w := &writer{
		jobs: make(chan job, writerQueueSize),
	}
	w.wg.Go(w.loop)
	return w
}

// Submit queues fn and returns its task. Blocks only while the queue is full.
func (w *writer) Submit(ctx context.Context, fn func(context.Context) error) *Task {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return completedTask(ErrClosed)
	}

	task := newTask()
	select {
	case w.jobs <- job{ctx: ctx, fn: fn, task: task}:
	case <-ctx.Done():
		return completedTask(ctx.Err())
	}
	return task
}

// Stop refuses new work, drains what is queued and waits for the loop to exit
func (w *writer) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()

	w.wg.Wait()
	log.Debug().Msg("Background writer stopped")
}

func (w *writer) loop() {
	for j := range w.jobs {
		w.run(j)
	}
}

func (w *writer) run(j job) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Background writer job panicked")
			err = fmt.Errorf("writer job panicked: %v", r)
		}
		j.task.finish(err)
	}()

	// Caller gave up before the job started; skip it
	if ctxErr := j.ctx.Err(); ctxErr != nil {
		err = ctxErr
		return
	}

	err = j.fn(j.ctx)
}
