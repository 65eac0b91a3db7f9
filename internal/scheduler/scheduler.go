// Package scheduler runs periodic jobs, each on its own ticker.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/our-story/internal/observability"
)

// Job is a named unit of periodic work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	// SkipInitialRun waits one interval before the first run, for work already done at startup.
	SkipInitialRun bool
}

// Scheduler starts every job once immediately, unless SkipInitialRun is set, and then
// on its interval until ctx is done.
// A tick that arrives while the previous run of the same job is still going is skipped.
type Scheduler struct {
	jobs   []Job
	logger *zap.Logger
	wg     sync.WaitGroup
}

// New validates jobs and returns a Scheduler.
func New(logger *zap.Logger, jobs ...Job) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, j := range jobs {
		if j.Name == "" || j.Run == nil {
			return nil, fmt.Errorf("scheduler: job %q needs a name and a run func", j.Name)
		}
		if j.Interval <= 0 {
			return nil, fmt.Errorf("scheduler: job %q interval must be positive, got %s", j.Name, j.Interval)
		}
	}
	return &Scheduler{jobs: jobs, logger: logger}, nil
}

// Start launches one goroutine per job and returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range s.jobs {
		j := j
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, j)
		}()
	}
}

// Wait blocks until every job loop and its last run have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	var running atomic.Bool
	var runs sync.WaitGroup
	defer runs.Wait()

	fire := func() {
		if !running.CompareAndSwap(false, true) {
			observability.SchedulerTicksSkippedTotal.WithLabelValues(j.Name).Inc()
			s.logger.Debug("tick skipped, previous run still in flight", zap.String("job", j.Name))
			return
		}
		runs.Add(1)
		go func() {
			defer runs.Done()
			defer running.Store(false)
			s.run(ctx, j)
		}()
	}

	if !j.SkipInitialRun {
		fire()
	}
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fire()
		}
	}
}

func (s *Scheduler) run(ctx context.Context, j Job) {
	defer func() {
		if r := recover(); r != nil {
			observability.SchedulerRunsTotal.WithLabelValues(j.Name, "panic").Inc()
			s.logger.Error("job panicked", zap.String("job", j.Name), zap.Any("panic", r))
		}
	}()
	if err := j.Run(ctx); err != nil {
		observability.SchedulerRunsTotal.WithLabelValues(j.Name, "error").Inc()
		if ctx.Err() == nil {
			s.logger.Warn("job failed", zap.String("job", j.Name), zap.Error(err))
		}
		return
	}
	observability.SchedulerRunsTotal.WithLabelValues(j.Name, "success").Inc()
}
