package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/metrics"
	"github.com/allisson/orderflow/internal/saga/domain"
)

// ProcessorConfig holds the recovery and cleanup knobs.
type ProcessorConfig struct {
	// StaleAfter is how long a non-terminal saga must sit untouched before recovery resumes it.
	StaleAfter time.Duration
	// BatchSize caps the sagas resumed per recovery pass.
	BatchSize int
	// Retention is how long COMPLETED and COMPENSATED sagas are kept.
	Retention time.Duration
	// CleanupBatchSize caps the rows removed per delete statement.
	CleanupBatchSize int
	// Now is the clock; nil means time.Now in UTC.
	Now func() time.Time
}

// DefaultProcessorConfig returns the default processor configuration.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		StaleAfter:       5 * time.Minute,
		BatchSize:        50,
		Retention:        7 * 24 * time.Hour,
		CleanupBatchSize: 500,
	}
}

func (c ProcessorConfig) normalize() ProcessorConfig {
	defaults := DefaultProcessorConfig()
	if c.StaleAfter <= 0 {
		c.StaleAfter = defaults.StaleAfter
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Retention <= 0 {
		c.Retention = defaults.Retention
	}
	if c.CleanupBatchSize <= 0 {
		c.CleanupBatchSize = defaults.CleanupBatchSize
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
	return c
}

// RecoveryResult summarizes one recovery pass.
type RecoveryResult struct {
	Found   int `json:"found"`
	Resumed int `json:"resumed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Processor resumes abandoned sagas, removes old finished ones and answers queries.
type Processor struct {
	repo        SagaTransactionRepository
	runner      SagaRunner
	definitions StepResolver
	metrics     metrics.BusinessMetrics
	logger      *slog.Logger
	cfg         ProcessorConfig
}

// NewProcessor creates a Processor.
func NewProcessor(
	repo SagaTransactionRepository,
	runner SagaRunner,
	definitions StepResolver,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
	cfg ProcessorConfig,
) *Processor {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &Processor{
		repo:        repo,
		runner:      runner,
		definitions: definitions,
		metrics:     businessMetrics,
		logger:      logger,
		cfg:         cfg.normalize(),
	}
}

// ResumeStale resumes non-terminal sagas that have not been updated for StaleAfter.
// A saga locked by another worker is skipped. A failure on one saga does not stop the pass;
// all failures are returned joined.
func (p *Processor) ResumeStale(ctx context.Context) (RecoveryResult, error) {
	start := time.Now()
	var result RecoveryResult

	stale, err := p.repo.ListStale(ctx, domain.ResumableStatuses, p.cfg.Now().Add(-p.cfg.StaleAfter), p.cfg.BatchSize)
	if err != nil {
		p.record(ctx, "recovery", start, err)
		return result, apperrors.Wrap(err, "failed to list stale sagas")
	}
	result.Found = len(stale)

	var errs []error
	for _, saga := range stale {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		err := p.resume(ctx, saga)
		switch {
		case err == nil:
			result.Resumed++
		case errors.Is(err, domain.ErrSagaLocked):
			result.Skipped++
		default:
			result.Failed++
			errs = append(errs, apperrors.Wrapf(err, "failed to resume saga %s", saga.ID))
			p.logger.Error("failed to resume saga",
				slog.String("saga_id", saga.ID.String()),
				slog.String("saga_type", saga.SagaType),
				slog.Any("error", err),
			)
		}
	}

	err = apperrors.Join(errs...)
	p.record(ctx, "recovery", start, err)
	if result.Found > 0 {
		p.logger.Info("saga recovery finished",
			slog.Int("found", result.Found),
			slog.Int("resumed", result.Resumed),
			slog.Int("skipped", result.Skipped),
			slog.Int("failed", result.Failed),
		)
	}
	return result, err
}

func (p *Processor) resume(ctx context.Context, saga *domain.SagaTransaction) error {
	steps, err := p.definitions.Steps(saga.SagaType)
	if err != nil {
		return err
	}
	_, err = p.runner.ResumeSaga(ctx, saga.ID, steps)
	return err
}

// Resume resumes a single saga by id with its registered definition.
func (p *Processor) Resume(ctx context.Context, id uuid.UUID) (*domain.SagaTransaction, error) {
	saga, err := p.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	steps, err := p.definitions.Steps(saga.SagaType)
	if err != nil {
		return nil, err
	}
	return p.runner.ResumeSaga(ctx, id, steps)
}

// Cleanup deletes COMPLETED and COMPENSATED sagas finished more than Retention ago.
// FAILED sagas are kept for inspection. Rows are removed in batches until none remain.
func (p *Processor) Cleanup(ctx context.Context) (int64, error) {
	start := time.Now()
	cutoff := p.cfg.Now().Add(-p.cfg.Retention)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			p.record(ctx, "cleanup", start, err)
			return total, err
		}
		deleted, err := p.repo.DeleteFinishedBefore(ctx, cutoff, p.cfg.CleanupBatchSize)
		if err != nil {
			p.record(ctx, "cleanup", start, err)
			return total, apperrors.Wrap(err, "failed to delete finished sagas")
		}
		total += deleted
		if deleted < int64(p.cfg.CleanupBatchSize) {
			break
		}
	}

	p.record(ctx, "cleanup", start, nil)
	if total > 0 {
		p.logger.Info("saga cleanup finished",
			slog.Int64("deleted", total),
			slog.Time("cutoff", cutoff),
		)
	}
	return total, nil
}

// Statistics returns the number of sagas per status, including zero counts.
func (p *Processor) Statistics(ctx context.Context) (map[domain.SagaStatus]int64, error) {
	counts, err := p.repo.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count sagas")
	}
	stats := make(map[domain.SagaStatus]int64, len(domain.AllSagaStatuses))
	for _, status := range domain.AllSagaStatuses {
		stats[status] = counts[status]
	}
	return stats, nil
}

// Get returns a saga by id.
func (p *Processor) Get(ctx context.Context, id uuid.UUID) (*domain.SagaTransaction, error) {
	return p.repo.Get(ctx, id)
}

// GetByBusinessID returns the most recent saga started for businessID.
func (p *Processor) GetByBusinessID(ctx context.Context, businessID string) (*domain.SagaTransaction, error) {
	return p.repo.GetByBusinessID(ctx, businessID)
}

// List returns sagas in status, optionally restricted to sagaType.
func (p *Processor) List(
	ctx context.Context,
	sagaType string,
	status domain.SagaStatus,
	limit int,
) ([]*domain.SagaTransaction, error) {
	if !status.IsValid() {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown saga status %q", status)
	}
	if limit <= 0 {
		limit = p.cfg.BatchSize
	}
	if sagaType == "" {
		return p.repo.ListByStatus(ctx, status, limit)
	}
	return p.repo.ListBySagaTypeAndStatus(ctx, sagaType, status, limit)
}

func (p *Processor) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	p.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}
