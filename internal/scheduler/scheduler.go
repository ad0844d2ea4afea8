// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "studyplan/internal/log"
)

// JobFunc is one unit of background work.
type JobFunc func(ctx context.Context) error

// Scheduler wraps a cron runner. Jobs of the same name never overlap; a tick
// that arrives while the previous run is still going is skipped.
type Scheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	jobs    map[string]JobFunc
	entries map[string]cron.EntryID
	ctx     context.Context
}

// New creates a scheduler evaluating schedules in loc (time.Local if nil).
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
		),
		jobs:    make(map[string]JobFunc),
		entries: make(map[string]cron.EntryID),
		ctx:     context.Background(),
	}
}

// Add registers fn under a standard five-field cron spec. An empty spec is
// accepted and leaves the job registered but unscheduled, so Run still works.
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("scheduler: job %q already registered", name)
	}
	if spec != "" {
		id, err := s.cron.AddFunc(spec, func() { s.run(name) })
		if err != nil {
			return fmt.Errorf("scheduler: job %q: %w", name, err)
		}
		s.entries[name] = id
	}
	s.jobs[name] = fn
	appLog.Info("scheduler: job registered", "job", name, "spec", spec)
	return nil
}

// Run executes a registered job immediately on the caller's goroutine.
func (s *Scheduler) Run(ctx context.Context, name string) error {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown job %q", name)
	}
	start := time.Now()
	err := fn(ctx)
	if err != nil {
		appLog.Error("scheduler: job failed", err, "job", name, "took", time.Since(start).String())
		return err
	}
	appLog.Debug("scheduler: job done", "job", name, "took", time.Since(start).String())
	return nil
}

func (s *Scheduler) run(name string) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	_ = s.Run(ctx, name)
}

// Start begins ticking. Jobs started by cron receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	appLog.Info("scheduler: started", "entries", len(s.cron.Entries()))
}

// Stop halts ticking and waits for running jobs, or until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		appLog.Warn("scheduler: stop timed out with jobs still running")
	}
}

// Next returns the next activation of each scheduled job by name. Before
// Start the times are zero.
func (s *Scheduler) Next() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

// cronLogger forwards cron's own messages to the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
