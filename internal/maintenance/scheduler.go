package maintenance

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/inventory/internal/config"
)

// Store is the storage upkeep surface driven by the scheduler
type Store interface {
	Optimize() error
	Vacuum() error
}

// TaskStatus describes one scheduled task
type TaskStatus struct {
	Schedule string     `json:"schedule"`
	NextRun  *time.Time `json:"next_run,omitempty"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	LastErr  string     `json:"last_error,omitempty"`
}

// Status is the scheduler state reported by the health endpoint
type Status struct {
	Running  bool       `json:"running"`
	Optimize TaskStatus `json:"optimize"`
	Vacuum   TaskStatus `json:"vacuum"`
}

type task struct {
	name     string
	schedule string
	run      func() error
	entryID  cron.EntryID
	lastRun  time.Time
	lastErr  error
}

// Scheduler runs periodic optimize and vacuum passes
type Scheduler struct {
	store    Store
	cron     *cron.Cron
	optimize *task
	vacuum   *task
	running  bool
	mu       sync.RWMutex
	runMu    sync.Mutex
}

// New creates a scheduler; call Start to register the schedules
func New(store Store, cfg config.MaintenanceConfig) *Scheduler {
	return &Scheduler{
		store:    store,
		cron:     cron.New(),
		optimize: &task{name: "optimize", schedule: cfg.OptimizeSchedule, run: store.Optimize},
		vacuum:   &task{name: "vacuum", schedule: cfg.VacuumSchedule, run: store.Vacuum},
	}
}

// Start parses the schedules and starts the cron loop.
// A task with an empty schedule is disabled.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	for _, t := range []*task{s.optimize, s.vacuum} {
		if t.schedule == "" {
			continue
		}
		id, err := s.cron.AddFunc(t.schedule, func() { s.execute(t) })
		if err != nil {
			s.removeAll()
			return fmt.Errorf("invalid %s schedule %q: %w", t.name, t.schedule, err)
		}
		t.entryID = id
	}

	s.cron.Start()
	s.running = true

	log.Info().
		Str("optimize", s.optimize.schedule).
		Str("vacuum", s.vacuum.schedule).
		Msg("Maintenance scheduler started")

	return nil
}

// Stop halts the cron loop and waits for a running task to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	ctx := s.cron.Stop()
	s.mu.Unlock()

	// a running task takes s.mu to record its result
	<-ctx.Done()

	s.mu.Lock()
	s.removeAll()
	s.mu.Unlock()
	log.Info().Msg("Maintenance scheduler stopped")
}

func (s *Scheduler) removeAll() {
	for _, t := range []*task{s.optimize, s.vacuum} {
		if t.entryID != 0 {
			s.cron.Remove(t.entryID)
			t.entryID = 0
		}
	}
}

// RunOptimize runs an optimize pass immediately
func (s *Scheduler) RunOptimize() error {
	return s.execute(s.optimize)
}

// RunVacuum runs a vacuum pass immediately
func (s *Scheduler) RunVacuum() error {
	return s.execute(s.vacuum)
}

// execute serializes task runs so a manual vacuum never overlaps a scheduled one
func (s *Scheduler) execute(t *task) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	err := t.run()

	s.mu.Lock()
	t.lastRun = start
	t.lastErr = err
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("task", t.name).Msg("Maintenance task failed")
		return err
	}

	log.Debug().
		Str("task", t.name).
		Dur("duration", time.Since(start)).
		Msg("Maintenance task completed")
	return nil
}

// Status returns the schedules with their next and last runs
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		Running:  s.running,
		Optimize: s.taskStatus(s.optimize),
		Vacuum:   s.taskStatus(s.vacuum),
	}
}

func (s *Scheduler) taskStatus(t *task) TaskStatus {
	status := TaskStatus{Schedule: t.schedule}
	if t.entryID != 0 {
		entry := s.cron.Entry(t.entryID)
		if !entry.Next.IsZero() {
			next := entry.Next
			status.NextRun = &next
		}
	}
	if !t.lastRun.IsZero() {
		last := t.lastRun
		status.LastRun = &last
	}
	if t.lastErr != nil {
		status.LastErr = t.lastErr.Error()
	}
	return status
}
