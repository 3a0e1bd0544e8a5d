package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/taskboard-dev/taskboard/internal/logger"
)

var errPanicked = errors.New("job panicked")

// JobFunc is one run of a periodic job. The context is cancelled when the
// job is removed or the scheduler stops.
type JobFunc func(ctx context.Context) error

type Scheduler struct {
	jobs   map[string]*Job
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logger.Logger
}

type Job struct {
	name     string
	interval time.Duration
	run      JobFunc
	ticker   *time.Ticker
	cancel   context.CancelFunc

	mu      sync.Mutex
	runs    int
	lastErr error
	lastRun time.Time
}

func NewScheduler(log *logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]*Job),
		ctx:    ctx,
		cancel: cancel,
		log:    log.Named("scheduler"),
	}
}

// Start is a no-op hook kept for symmetry with Stop; jobs begin as soon as
// they are added.
func (s *Scheduler) Start() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.log.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop cancels every job and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.log.Info("stopping scheduler")
	s.cancel()

	s.mu.Lock()
	for _, job := range s.jobs {
		job.ticker.Stop()
		job.cancel()
	}
	s.jobs = make(map[string]*Job)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// AddJob schedules run every interval, replacing any job with the same
// name. The first run happens immediately.
func (s *Scheduler) AddJob(name string, interval time.Duration, run JobFunc) {
	if interval <= 0 {
		s.log.Warn("ignoring job with non-positive interval", "job", name)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}

	if existing, ok := s.jobs[name]; ok {
		existing.ticker.Stop()
		existing.cancel()
	}

	jobCtx, jobCancel := context.WithCancel(s.ctx)
	job := &Job{
		name:     name,
		interval: interval,
		run:      run,
		ticker:   time.NewTicker(interval),
		cancel:   jobCancel,
	}
	s.jobs[name] = job

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(jobCtx, job)
		s.loop(jobCtx, job)
	}()

	s.log.Info("added job", "job", name, "interval", interval)
}

func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[name]; ok {
		job.ticker.Stop()
		job.cancel()
		delete(s.jobs, name)
		s.log.Info("removed job", "job", name)
	}
}

func (s *Scheduler) loop(ctx context.Context, job *Job) {
	defer job.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-job.ticker.C:
			s.execute(ctx, job)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, job *Job) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := s.safeRun(ctx, job)

	job.mu.Lock()
	job.runs++
	job.lastErr = err
	job.lastRun = start
	job.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		s.log.Error("job failed", "job", job.name, "duration", time.Since(start), "error", err)
		return
	}
	s.log.Debug("job finished", "job", job.name, "duration", time.Since(start))
}

func (s *Scheduler) safeRun(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", "job", job.name, "panic", r)
			err = errPanicked
		}
	}()
	return job.run(ctx)
}

type JobStatus struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	Runs      int           `json:"runs"`
	LastRun   time.Time     `json:"last_run"`
	LastError string        `json:"last_error,omitempty"`
}

// Status reports whether the scheduler is running and the state of each job.
func (s *Scheduler) Status() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]JobStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		job.mu.Lock()
		status := JobStatus{
			Name:     job.name,
			Interval: job.interval,
			Runs:     job.runs,
			LastRun:  job.lastRun,
		}
		if job.lastErr != nil {
			status.LastError = job.lastErr.Error()
		}
		job.mu.Unlock()
		jobs = append(jobs, status)
	}

	return map[string]interface{}{
		"active_jobs": len(s.jobs),
		"running":     s.ctx.Err() == nil,
		"jobs":        jobs,
	}
}
