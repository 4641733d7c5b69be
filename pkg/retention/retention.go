// Package retention prunes variable history older than a retention period on a schedule.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner removes history recorded before a point in time.
type Pruner interface {
	PruneHistory(ctx context.Context, before time.Time) (int, error)
}

// Job runs a Pruner on a cron schedule.
type Job struct {
	logger    *slog.Logger
	pruner    Pruner
	schedule  string
	retention time.Duration
	now       func() time.Time
}

func NewJob(logger *slog.Logger, pruner Pruner, schedule string, retention time.Duration) (*Job, error) {
	job := &Job{
		logger:    logger.With("schedule", schedule, "retention", retention),
		pruner:    pruner,
		schedule:  schedule,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

func (j *Job) Validate() error {
	if j.retention <= 0 {
		return errors.New("history retention must be positive")
	}

	if j.schedule == "" {
		return errors.New("history cleanup schedule is required")
	}

	if _, err := cron.ParseStandard(j.schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

// RunOnce prunes everything older than the retention period.
func (j *Job) RunOnce(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.retention)

	removed, err := j.pruner.PruneHistory(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	j.logger.InfoContext(ctx, "Pruned variable history", "removed", removed, "before", cutoff)

	return removed, nil
}

// Run schedules the job and blocks until ctx is done, then waits for a running prune.
func (j *Job) Run(ctx context.Context) error {
	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	id, err := scheduler.AddFunc(j.schedule, func() {
		if _, err := j.RunOnce(ctx); err != nil {
			j.logger.ErrorContext(ctx, "History cleanup failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add history cleanup job: %w", err)
	}

	j.logger.InfoContext(ctx, "Starting history cleanup", "entry_id", id)
	scheduler.Start()

	<-ctx.Done()

	j.logger.Info("Stopping history cleanup")
	<-scheduler.Stop().Done()

	return nil
}
