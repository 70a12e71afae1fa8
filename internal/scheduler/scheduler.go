// Package scheduler runs background jobs on fixed intervals until the context is cancelled.
package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/lock"
	"github.com/allisson/orderflow/internal/metrics"
)

const metricsDomain = "scheduler"

// ErrInvalidSchedule indicates a schedule with no name, no job or a non-positive interval.
var ErrInvalidSchedule = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid schedule")

// Job is a unit of background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type jobFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (j jobFunc) Name() string                  { return j.name }
func (j jobFunc) Run(ctx context.Context) error { return j.fn(ctx) }

// NewJob adapts fn into a Job.
func NewJob(name string, fn func(ctx context.Context) error) Job {
	return jobFunc{name: name, fn: fn}
}

// Schedule binds a job to its interval. A Locked job runs on at most one instance at a
// time; a run that finds the lock taken is skipped.
type Schedule struct {
	Job      Job
	Interval time.Duration
	Locked   bool
	// LockTTL defaults to the interval.
	LockTTL time.Duration
}

// Scheduler runs every schedule on its own ticker.
type Scheduler struct {
	locker    lock.Locker
	metrics   metrics.BusinessMetrics
	logger    *slog.Logger
	schedules []Schedule
}

// New creates a Scheduler. locker is required only for locked schedules.
func New(locker lock.Locker, businessMetrics metrics.BusinessMetrics, logger *slog.Logger) *Scheduler {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &Scheduler{
		locker:  locker,
		metrics: businessMetrics,
		logger:  logger.With(slog.String("component", "scheduler")),
	}
}

// Add registers a schedule. Call it before Run.
func (s *Scheduler) Add(schedule Schedule) error {
	if schedule.Job == nil || strings.TrimSpace(schedule.Job.Name()) == "" || schedule.Interval <= 0 {
		return ErrInvalidSchedule
	}
	if schedule.Locked && s.locker == nil {
		return apperrors.Wrapf(ErrInvalidSchedule, "job %s needs a locker", schedule.Job.Name())
	}
	if schedule.LockTTL <= 0 {
		schedule.LockTTL = schedule.Interval
	}
	s.schedules = append(s.schedules, schedule)
	return nil
}

// Jobs lists the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		names = append(names, schedule.Job.Name())
	}
	return names
}

// Run starts every schedule, running each job once immediately and then on every tick.
// It blocks until ctx is cancelled and all in-flight runs have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, schedule := range s.schedules {
		group.Go(func() error {
			s.loop(groupCtx, schedule)
			return nil
		})
	}

	s.logger.Info("scheduler started", slog.Any("jobs", s.Jobs()))
	err := group.Wait()
	s.logger.Info("scheduler stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, schedule Schedule) {
	s.RunOnce(ctx, schedule)

	ticker := time.NewTicker(schedule.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx, schedule)
		}
	}
}

// RunOnce executes one run of schedule, honoring its lock. Failures are logged and counted.
func (s *Scheduler) RunOnce(ctx context.Context, schedule Schedule) {
	if ctx.Err() != nil {
		return
	}

	name := schedule.Job.Name()
	logger := s.logger.With(slog.String("job", name))
	start := time.Now()

	var err error
	if schedule.Locked {
		err = lock.WithLock(ctx, s.locker, "scheduler:"+name, schedule.LockTTL, schedule.Job.Run)
	} else {
		err = schedule.Job.Run(ctx)
	}
	duration := time.Since(start)

	switch {
	case apperrors.Is(err, lock.ErrNotAcquired):
		logger.Debug("job skipped, another instance holds the lock")
		s.metrics.RecordOperation(ctx, metricsDomain, name, "skipped")
		return
	case err != nil && ctx.Err() != nil:
		logger.Info("job interrupted by shutdown", slog.Any("error", err))
		s.record(ctx, name, duration, "interrupted")
		return
	case err != nil:
		logger.Error("job failed", slog.Duration("duration", duration), slog.Any("error", err))
		s.record(ctx, name, duration, "error")
		return
	}

	logger.Debug("job completed", slog.Duration("duration", duration))
	s.record(ctx, name, duration, "success")
}

func (s *Scheduler) record(ctx context.Context, name string, duration time.Duration, status string) {
	s.metrics.RecordOperation(ctx, metricsDomain, name, status)
	s.metrics.RecordDuration(ctx, metricsDomain, name, duration, status)
}
