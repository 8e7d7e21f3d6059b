package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner drives a set of jobs, each on its own ticker. Every job runs once
// immediately. A tick that arrives while the job's previous run is still in
// flight is skipped.
type Runner struct {
	jobs    []Job
	logger  *slog.Logger
	skipped sync.Map // job name -> *atomic.Int64
}

func NewRunner(logger *slog.Logger, jobs ...Job) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{jobs: jobs, logger: logger}
	for _, j := range jobs {
		r.skipped.Store(j.Name, new(atomic.Int64))
	}
	return r
}

// Run blocks until ctx is cancelled and every in-flight run has returned.
func (r *Runner) Run(ctx context.Context) error {
	for _, j := range r.jobs {
		if j.Interval <= 0 {
			return fmt.Errorf("job %s: interval must be positive", j.Name)
		}
	}

	var wg sync.WaitGroup
	for _, j := range r.jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			r.loop(ctx, j)
		}(j)
	}

	r.logger.InfoContext(ctx, "scheduler started", "jobs", len(r.jobs))
	wg.Wait()
	r.logger.InfoContext(ctx, "scheduler stopped")
	return nil
}

// Skipped returns how many ticks of the named job were skipped.
func (r *Runner) Skipped(name string) int64 {
	v, ok := r.skipped.Load(name)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

func (r *Runner) loop(ctx context.Context, j Job) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	var inFlight atomic.Bool
	var runs sync.WaitGroup
	defer runs.Wait()

	trigger := func() {
		if !inFlight.CompareAndSwap(false, true) {
			v, _ := r.skipped.Load(j.Name)
			v.(*atomic.Int64).Add(1)
			r.logger.WarnContext(ctx, "job still running, skipping tick", "job", j.Name)
			return
		}
		runs.Add(1)
		go func() {
			defer runs.Done()
			defer inFlight.Store(false)
			r.execute(ctx, j)
		}()
	}

	trigger()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			trigger()
		}
	}
}

func (r *Runner) execute(ctx context.Context, j Job) {
	startedAt := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "job panicked", "job", j.Name, "panic", p)
		}
	}()

	if err := j.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.ErrorContext(ctx, "job failed", "job", j.Name, "error", err, "duration_ms", time.Since(startedAt).Milliseconds())
		return
	}
	r.logger.DebugContext(ctx, "job finished", "job", j.Name, "duration_ms", time.Since(startedAt).Milliseconds())
}
