// Package jobs runs periodic housekeeping on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one unit of periodic work.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

type Runner struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner creates a runner. Each run gets its own context bounded by
// timeout.
func NewRunner(timeout time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		cron:    cron.New(),
		timeout: timeout,
		logger:  logger,
	}
}

// Add registers j. Schedules use the standard five-field syntax or the
// @every / @hourly descriptors; an empty schedule leaves the job disabled.
func (r *Runner) Add(j Job) error {
	if j.Schedule == "" {
		r.logger.Info("job disabled", "job", j.Name)
		return nil
	}
	if _, err := r.cron.AddFunc(j.Schedule, func() { r.runOnce(j) }); err != nil {
		return fmt.Errorf("schedule job %s: %w", j.Name, err)
	}
	r.logger.Info("job scheduled", "job", j.Name, "schedule", j.Schedule)
	return nil
}

func (r *Runner) runOnce(j Job) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	if err := j.Run(ctx); err != nil {
		r.logger.Error("job failed", "job", j.Name, "error", err, "duration", time.Since(start))
		return
	}
	r.logger.Debug("job finished", "job", j.Name, "duration", time.Since(start))
}

// Start begins running jobs in the background.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.logger.Warn("jobs still running at shutdown")
	}
}

// Pruner removes schedule entries whose events are gone.
type Pruner interface {
	PruneSchedule(ctx context.Context) (int64, error)
}

// Cleaner drops expired rate limiter entries.
type Cleaner interface {
	Cleanup() int
}

// PruneOrphans returns the job that clears dangling schedule entries.
func PruneOrphans(schedule string, p Pruner, logger *slog.Logger) Job {
	return Job{
		Name:     "prune-orphans",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			n, err := p.PruneSchedule(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("pruned orphaned schedule entries", "count", n)
			}
			return nil
		},
	}
}

// RateLimitCleanup returns the job that expires in-memory rate limit windows.
func RateLimitCleanup(schedule string, c Cleaner, logger *slog.Logger) Job {
	return Job{
		Name:     "ratelimit-cleanup",
		Schedule: schedule,
		Run: func(context.Context) error {
			if n := c.Cleanup(); n > 0 {
				logger.Debug("expired rate limit entries", "count", n)
			}
			return nil
		},
	}
}
