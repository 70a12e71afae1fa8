package scheduler

import (
	"context"
	"log/slog"
	"time"

	outboxUsecase "github.com/allisson/orderflow/internal/outbox/usecase"
	sagaDomain "github.com/allisson/orderflow/internal/saga/domain"
	sagaUsecase "github.com/allisson/orderflow/internal/saga/usecase"
)

// Job names.
const (
	OutboxDispatchJobName = "outbox-dispatch"
	OutboxRetryJobName    = "outbox-retry"
	OutboxCleanupJobName  = "outbox-cleanup"
	SagaRecoveryJobName   = "saga-recovery"
)

// OutboxDispatcher delivers claimed outbox events.
type OutboxDispatcher interface {
	ProcessPending(ctx context.Context) (outboxUsecase.CycleResult, error)
	RetryFailed(ctx context.Context) (outboxUsecase.CycleResult, error)
}

// OutboxCleaner purges delivered events.
type OutboxCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// SagaRecoverer resumes abandoned sagas and purges finished ones.
type SagaRecoverer interface {
	ResumeStale(ctx context.Context) (sagaUsecase.RecoveryResult, error)
	Cleanup(ctx context.Context) (int64, error)
	Statistics(ctx context.Context) (map[sagaDomain.SagaStatus]int64, error)
}

// JobIntervals holds the cadence of the built-in jobs.
type JobIntervals struct {
	OutboxDispatch  time.Duration
	OutboxRetry     time.Duration
	OutboxCleanup   time.Duration
	OutboxRetention time.Duration
	SagaRecovery    time.Duration
}

// DefaultJobIntervals returns the built-in cadence.
func DefaultJobIntervals() JobIntervals {
	return JobIntervals{
		OutboxDispatch:  5 * time.Second,
		OutboxRetry:     60 * time.Second,
		OutboxCleanup:   24 * time.Hour,
		OutboxRetention: 7 * 24 * time.Hour,
		SagaRecovery:    30 * time.Second,
	}
}

// OutboxDispatchJob dispatches pending events and reclaims stale ones.
func OutboxDispatchJob(dispatcher OutboxDispatcher) Job {
	return NewJob(OutboxDispatchJobName, func(ctx context.Context) error {
		_, err := dispatcher.ProcessPending(ctx)
		return err
	})
}

// OutboxRetryJob retries failed events past their cooldown.
func OutboxRetryJob(dispatcher OutboxDispatcher) Job {
	return NewJob(OutboxRetryJobName, func(ctx context.Context) error {
		_, err := dispatcher.RetryFailed(ctx)
		return err
	})
}

// OutboxCleanupJob deletes processed events older than retention.
func OutboxCleanupJob(cleaner OutboxCleaner, retention time.Duration, logger *slog.Logger) Job {
	return NewJob(OutboxCleanupJobName, func(ctx context.Context) error {
		deleted, err := cleaner.Cleanup(ctx, retention)
		if err != nil {
			return err
		}
		if deleted > 0 {
			logger.Info("processed outbox events removed", slog.Int64("deleted", deleted))
		}
		return nil
	})
}

// SagaRecoveryJob resumes stale sagas, purges finished ones and logs the status counts.
func SagaRecoveryJob(recoverer SagaRecoverer, logger *slog.Logger) Job {
	return NewJob(SagaRecoveryJobName, func(ctx context.Context) error {
		if _, err := recoverer.ResumeStale(ctx); err != nil {
			return err
		}
		if _, err := recoverer.Cleanup(ctx); err != nil {
			return err
		}

		counts, err := recoverer.Statistics(ctx)
		if err != nil {
			return err
		}
		attrs := make([]any, 0, len(counts))
		for _, status := range sagaDomain.AllSagaStatuses {
			attrs = append(attrs, slog.Int64(string(status), counts[status]))
		}
		logger.Debug("saga statistics", attrs...)
		return nil
	})
}

// Register adds the built-in jobs. Cleanup and saga recovery are locked so only one
// instance runs them at a time.
func Register(
	s *Scheduler,
	dispatcher OutboxDispatcher,
	cleaner OutboxCleaner,
	recoverer SagaRecoverer,
	intervals JobIntervals,
	logger *slog.Logger,
) error {
	schedules := []Schedule{
		{Job: OutboxDispatchJob(dispatcher), Interval: intervals.OutboxDispatch},
		{Job: OutboxRetryJob(dispatcher), Interval: intervals.OutboxRetry},
		{
			Job:      OutboxCleanupJob(cleaner, intervals.OutboxRetention, logger),
			Interval: intervals.OutboxCleanup,
			Locked:   true,
			LockTTL:  time.Hour,
		},
		{Job: SagaRecoveryJob(recoverer, logger), Interval: intervals.SagaRecovery, Locked: true},
	}
	for _, schedule := range schedules {
		if err := s.Add(schedule); err != nil {
			return err
		}
	}
	return nil
}

var _ OutboxCleaner = (*outboxUsecase.Store)(nil)
