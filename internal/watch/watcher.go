package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Notifier is told when the database files change on disk
type Notifier interface {
	NotifyAll()
}

// Watcher turns writes to the database files by other processes into
// live query refreshes.
type Watcher struct {
	dbPath   string
	names    map[string]struct{}
	notifier Notifier
	debounce time.Duration
	watcher  *fsnotify.Watcher

	timer   *time.Timer
	timerMu sync.Mutex

	running bool
	mu      sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher for the database at dbPath.
// The -shm file is ignored since readers touch it too.
func New(dbPath string, notifier Notifier, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	base := filepath.Base(dbPath)
	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		dbPath: dbPath,
		names: map[string]struct{}{
			base:              {},
			base + "-wal":     {},
			base + "-journal": {},
		},
		notifier: notifier,
		debounce: debounce,
		watcher:  fsWatcher,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start watches the directory holding the database
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	dir := filepath.Dir(w.dbPath)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	w.running = true
	w.wg.Go(w.eventLoop)

	log.Info().Str("dir", dir).Str("debounce", w.debounce.String()).Msg("Database watcher started")
	return nil
}

// Stop stops the watcher and drops a pending notification
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.cancel()
	w.watcher.Close()
	w.wg.Wait()

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.timerMu.Unlock()

	log.Info().Msg("Database watcher stopped")
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Database watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if _, ok := w.names[filepath.Base(event.Name)]; !ok {
		return
	}

	log.Trace().Str("path", event.Name).Str("op", event.Op.String()).Msg("Database file changed")
	w.schedule()
}

// schedule restarts the debounce timer
func (w *Watcher) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.ctx.Err() != nil {
		return
	}

	if w.debounce <= 0 {
		w.notifier.NotifyAll()
		return
	}

	if w.timer != nil {
		w.timer.Reset(w.debounce)
		return
	}

	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.timerMu.Lock()
	w.timer = nil
	w.timerMu.Unlock()

	if w.ctx.Err() != nil {
		return
	}
	w.notifier.NotifyAll()
}
