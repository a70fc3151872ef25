// Package scheduler runs periodic jobs, such as retrying the offline queue,
// on cron expressions.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SyncJob is the name of the periodic queue sync job.
const SyncJob = "sync"

// JobState tracks job execution.
type JobState struct {
	Schedule  string    `json:"schedule"`
	LastRunAt time.Time `json:"lastRunAt,omitempty"`
	NextRunAt time.Time `json:"nextRunAt,omitempty"`
	RunCount  int64     `json:"runCount"`
}

type job struct {
	id    cron.EntryID
	state JobState
}

// Scheduler wraps a cron runner with named jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

// New creates a stopped scheduler. Overlapping runs of a job are skipped and
// panics are recovered.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger: logger,
		jobs:   make(map[string]*job),
	}
}

// Validate checks a schedule expression. Standard five-field expressions and
// descriptors such as "@hourly" or "@every 5m" are accepted.
func Validate(spec string) error {
	if spec == "" {
		return fmt.Errorf("scheduler: empty schedule")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q: %w", spec, err)
	}
	return nil
}

// AddSync schedules fn as the periodic sync job.
func (s *Scheduler) AddSync(spec string, fn func()) error {
	return s.Add(SyncJob, spec, fn)
}

// Add schedules fn under name, replacing any job with the same name.
func (s *Scheduler) Add(name, spec string, fn func()) error {
	if err := Validate(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old.id)
	}
	j := &job{state: JobState{Schedule: spec}}
	id, err := s.cron.AddFunc(spec, func() {
		s.mu.Lock()
		j.state.LastRunAt = time.Now()
		j.state.RunCount++
		s.mu.Unlock()
		fn()
	})
	if err != nil {
		return fmt.Errorf("scheduler: add %s: %w", name, err)
	}
	j.id = id
	s.jobs[name] = j
	s.logger.Info("job scheduled", "job", name, "schedule", spec)
	return nil
}

// Remove unschedules name. Unknown names are ignored.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok {
		s.cron.Remove(j.id)
		delete(s.jobs, name)
	}
}

// State returns the state of name.
func (s *Scheduler) State(name string) (JobState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return JobState{}, false
	}
	st := j.state
	st.NextRunAt = s.cron.Entry(j.id).Next
	return st, true
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// cronLogger routes cron's logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
