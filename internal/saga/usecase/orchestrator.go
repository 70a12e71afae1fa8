package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/lock"
	"github.com/allisson/orderflow/internal/metrics"
	"github.com/allisson/orderflow/internal/saga/domain"
)

const metricsDomain = "saga"

// OrchestratorConfig holds the orchestrator tuning knobs.
type OrchestratorConfig struct {
	// StepTimeout bounds each Execute and Compensate call unless the step implements
	// domain.StepTimeout.
	StepTimeout time.Duration
	// LockTTL is how long a worker may drive a saga before another one can take over.
	LockTTL time.Duration
	// Now is the clock; nil means time.Now in UTC.
	Now func() time.Time
}

// DefaultOrchestratorConfig returns the default orchestrator configuration.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		StepTimeout: 30 * time.Second,
		LockTTL:     5 * time.Minute,
	}
}

func (c OrchestratorConfig) normalize() OrchestratorConfig {
	defaults := DefaultOrchestratorConfig()
	if c.StepTimeout <= 0 {
		c.StepTimeout = defaults.StepTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
	return c
}

// Orchestrator runs sagas step by step and compensates executed steps in reverse order when
// one fails. Every transition is persisted before the next step runs, so a saga interrupted
// by a crash or a cancelled context can be picked up by ResumeSaga.
//
// A step failure is a business outcome: StartSaga and ResumeSaga return the saga in its
// final status with a nil error. Errors are reserved for invalid definitions, lock
// contention, persistence failures and cancellation.
type Orchestrator struct {
	repo    SagaTransactionRepository
	locker  lock.Locker
	metrics metrics.BusinessMetrics
	logger  *slog.Logger
	cfg     OrchestratorConfig
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	repo SagaTransactionRepository,
	locker lock.Locker,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &Orchestrator{
		repo:    repo,
		locker:  locker,
		metrics: businessMetrics,
		logger:  logger,
		cfg:     cfg.normalize(),
	}
}

func lockKey(id uuid.UUID) string {
	return "saga:resume:" + id.String()
}

// StartSaga persists a new saga for steps and runs it to a terminal status.
func (o *Orchestrator) StartSaga(
	ctx context.Context,
	sagaType, businessID string,
	data *domain.Data,
	steps []domain.Step,
) (*domain.SagaTransaction, error) {
	start := time.Now()

	if strings.TrimSpace(sagaType) == "" {
		return nil, apperrors.Wrap(domain.ErrInvalidSagaDefinition, "saga type is required")
	}
	if err := validateSteps(steps); err != nil {
		return nil, err
	}

	saga := domain.NewSagaTransaction(sagaType, businessID, stepNames(steps), data.Clone(), o.cfg.Now())
	if err := o.repo.Create(ctx, saga); err != nil {
		o.record(ctx, "start", start, err)
		return nil, apperrors.Wrap(err, "failed to create saga")
	}

	o.logger.Info("saga started",
		slog.String("saga_id", saga.ID.String()),
		slog.String("saga_type", saga.SagaType),
		slog.String("business_id", saga.BusinessID),
	)

	err := o.withSagaLock(ctx, saga.ID, func(ctx context.Context) error {
		saga.Status = domain.SagaStatusExecuting
		saga.UpdatedAt = o.cfg.Now()
		if err := o.persist(ctx, saga); err != nil {
			return err
		}
		return o.drive(ctx, saga, steps)
	})
	o.record(ctx, "start", start, err)
	if err != nil {
		return saga, err
	}
	return saga, nil
}

// ResumeSaga continues a saga from its persisted state. Terminal sagas are returned as they
// are. A saga held by another worker yields domain.ErrSagaLocked.
func (o *Orchestrator) ResumeSaga(
	ctx context.Context,
	id uuid.UUID,
	steps []domain.Step,
) (*domain.SagaTransaction, error) {
	start := time.Now()

	if err := validateSteps(steps); err != nil {
		return nil, err
	}

	var saga *domain.SagaTransaction
	err := o.withSagaLock(ctx, id, func(ctx context.Context) error {
		var err error
		saga, err = o.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if saga.Status.IsTerminal() {
			return nil
		}
		if err := checkDefinition(saga, steps); err != nil {
			return err
		}

		o.logger.Info("resuming saga",
			slog.String("saga_id", saga.ID.String()),
			slog.String("saga_type", saga.SagaType),
			slog.String("status", string(saga.Status)),
			slog.Int("executed_steps", len(saga.ExecutedSteps)),
		)

		if saga.Status == domain.SagaStatusStarted {
			saga.Status = domain.SagaStatusExecuting
			saga.UpdatedAt = o.cfg.Now()
			if err := o.persist(ctx, saga); err != nil {
				return err
			}
		}
		return o.drive(ctx, saga, steps)
	})
	o.record(ctx, "resume", start, err)
	return saga, err
}

func (o *Orchestrator) withSagaLock(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) error {
	err := lock.WithLock(ctx, o.locker, lockKey(id), o.cfg.LockTTL, fn)
	if errors.Is(err, lock.ErrNotAcquired) {
		return domain.ErrSagaLocked
	}
	return err
}

// drive moves an EXECUTING or COMPENSATING saga forward until it is terminal or ctx ends.
func (o *Orchestrator) drive(ctx context.Context, saga *domain.SagaTransaction, steps []domain.Step) error {
	if saga.Status == domain.SagaStatusExecuting {
		if err := o.forward(ctx, saga, steps); err != nil {
			return err
		}
	}
	if saga.Status == domain.SagaStatusCompensating {
		if err := o.rollback(ctx, saga, steps); err != nil {
			return err
		}
	}
	if saga.Status.IsTerminal() {
		o.metrics.RecordOutcome(ctx, metricsDomain, saga.SagaType, string(saga.Status))
		o.logger.Info("saga finished",
			slog.String("saga_id", saga.ID.String()),
			slog.String("saga_type", saga.SagaType),
			slog.String("status", string(saga.Status)),
		)
	}
	return nil
}

// forward executes the steps after the last executed one. On a step failure the saga moves
// to COMPENSATING; a failure caused by ctx ending leaves it EXECUTING for recovery.
func (o *Orchestrator) forward(ctx context.Context, saga *domain.SagaTransaction, steps []domain.Step) error {
	for i := len(saga.ExecutedSteps); i < len(steps); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		step := steps[i]
		saga.CurrentStep = i

		out, err := o.executeStep(ctx, step, saga.Data.Clone())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			stepErr := &domain.StepExecutionError{Step: step.Name(), Err: err}
			o.logger.Warn("saga step failed",
				slog.String("saga_id", saga.ID.String()),
				slog.String("step", step.Name()),
				slog.Any("error", err),
			)
			saga.SetError(stepErr.Error())
			saga.Status = domain.SagaStatusCompensating
			saga.UpdatedAt = o.cfg.Now()
			return o.persist(ctx, saga)
		}

		saga.Data.Merge(out)
		saga.ExecutedSteps = append(saga.ExecutedSteps, step.Name())
		saga.CurrentStep = i + 1
		saga.UpdatedAt = o.cfg.Now()
		if err := o.persist(ctx, saga); err != nil {
			return err
		}
	}

	saga.Finish(domain.SagaStatusCompleted, o.cfg.Now())
	return o.persist(ctx, saga)
}

// rollback compensates executed steps in reverse order. A failed compensation is recorded
// and the remaining steps are still compensated; the saga then ends FAILED.
func (o *Orchestrator) rollback(ctx context.Context, saga *domain.SagaTransaction, steps []domain.Step) error {
	byName := make(map[string]domain.Step, len(steps))
	for _, step := range steps {
		byName[step.Name()] = step
	}

	var failures []string
	for i := len(saga.ExecutedSteps) - 1; i >= 0; i-- {
		name := saga.ExecutedSteps[i]
		if saga.IsCompensated(name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := o.compensateStep(ctx, byName[name], saga.Data.Clone())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			compErr := &domain.CompensationError{Step: name, Err: err}
			o.logger.Error("saga compensation failed",
				slog.String("saga_id", saga.ID.String()),
				slog.String("step", name),
				slog.Any("error", err),
			)
			failures = append(failures, compErr.Error())
			continue
		}

		saga.CompensatedSteps = append(saga.CompensatedSteps, name)
		saga.UpdatedAt = o.cfg.Now()
		if err := o.persist(ctx, saga); err != nil {
			return err
		}
	}

	if len(failures) > 0 {
		msg := strings.Join(failures, "; ")
		if saga.ErrorMessage != nil && *saga.ErrorMessage != "" {
			msg = *saga.ErrorMessage + "; " + msg
		}
		saga.SetError(msg)
		saga.Finish(domain.SagaStatusFailed, o.cfg.Now())
	} else {
		saga.Finish(domain.SagaStatusCompensated, o.cfg.Now())
	}
	return o.persist(ctx, saga)
}

// persist writes the saga even when ctx is cancelled so the stored state matches what ran.
func (o *Orchestrator) persist(ctx context.Context, saga *domain.SagaTransaction) error {
	if err := o.repo.Update(context.WithoutCancel(ctx), saga); err != nil {
		return apperrors.Wrapf(err, "failed to persist saga %s", saga.ID)
	}
	return nil
}

func (o *Orchestrator) executeStep(ctx context.Context, step domain.Step, data *domain.Data) (*domain.Data, error) {
	start := time.Now()
	var out *domain.Data
	err := o.call(ctx, step, func(stepCtx context.Context) error {
		var err error
		out, err = step.Execute(stepCtx, data)
		return err
	})
	o.recordStep(ctx, "step_execute", step.Name(), start, err)
	return out, err
}

func (o *Orchestrator) compensateStep(ctx context.Context, step domain.Step, data *domain.Data) error {
	start := time.Now()
	err := o.call(ctx, step, func(stepCtx context.Context) error {
		return step.Compensate(stepCtx, data)
	})
	o.recordStep(ctx, "step_compensate", step.Name(), start, err)
	return err
}

// call runs fn bounded by the step timeout and turns a panic into an error.
func (o *Orchestrator) call(ctx context.Context, step domain.Step, fn func(ctx context.Context) error) error {
	timeout := o.cfg.StepTimeout
	if t, ok := step.(domain.StepTimeout); ok && t.Timeout() > 0 {
		timeout = t.Timeout()
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("step panicked: %v", r)
			}
		}()
		done <- fn(stepCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-stepCtx.Done():
		select {
		case err = <-done:
		default:
			err = stepCtx.Err()
		}
	}
	if err != nil && ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("step timed out after %s: %w", timeout, err)
	}
	return err
}

func (o *Orchestrator) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	o.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	o.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

func (o *Orchestrator) recordStep(ctx context.Context, operation, step string, start time.Time, err error) {
	o.record(ctx, operation, start, err)
	o.logger.Debug("saga step call finished",
		slog.String("operation", operation),
		slog.String("step", step),
		slog.Bool("ok", err == nil),
	)
}

// checkDefinition verifies steps describe the same saga that was stored.
func checkDefinition(saga *domain.SagaTransaction, steps []domain.Step) error {
	names := stepNames(steps)
	if len(saga.StepNames) > 0 && !slices.Equal(saga.StepNames, names) {
		return apperrors.Wrapf(domain.ErrStepDefinitionMismatch, "saga %s", saga.ID)
	}
	if len(saga.ExecutedSteps) > len(names) || !slices.Equal(saga.ExecutedSteps, names[:len(saga.ExecutedSteps)]) {
		return apperrors.Wrapf(domain.ErrStepDefinitionMismatch, "saga %s", saga.ID)
	}
	return nil
}
