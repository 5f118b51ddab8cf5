// Package scheduler runs kit builds on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
	"git.home.luguber.info/inful/kitbuilder/internal/logfields"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// Scheduler wraps a gocron scheduler. Jobs never overlap: a run that is
// still going when the next tick arrives causes that tick to be skipped.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// New creates a scheduler; call Start to begin running jobs.
func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, kerrors.InternalError("failed to create scheduler").WithCause(err).Build()
	}
	return &Scheduler{scheduler: s}, nil
}

// ScheduleCron registers task under name. Five-field expressions are
// standard cron; six fields add a leading seconds column.
func (s *Scheduler) ScheduleCron(ctx context.Context, name, expr string, task Task) (string, error) {
	expr = strings.TrimSpace(expr)
	withSeconds := len(strings.Fields(expr)) == 6
	job, err := s.scheduler.NewJob(
		gocron.CronJob(expr, withSeconds),
		gocron.NewTask(s.execute, ctx, name, task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", kerrors.ValidationError("invalid cron expression").
			WithCause(err).
			WithContext("cron", expr).
			Build()
	}
	return job.ID().String(), nil
}

// NextRun reports when the named job fires next.
func (s *Scheduler) NextRun(name string) (time.Time, error) {
	for _, j := range s.scheduler.Jobs() {
		if j.Name() == name {
			return j.NextRun()
		}
	}
	return time.Time{}, fmt.Errorf("no job named %q", name)
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

func (s *Scheduler) execute(ctx context.Context, name string, task Task) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	slog.Info("Executing scheduled build", slog.String("job", name))
	if err := task(ctx); err != nil {
		slog.Error("Scheduled build failed",
			slog.String("job", name),
			logfields.DurationMS(float64(time.Since(start).Milliseconds())),
			logfields.Error(err))
		return
	}
	slog.Info("Scheduled build finished",
		slog.String("job", name),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
}
