package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/orderflow/internal/database"
	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/metrics"
	"github.com/allisson/orderflow/internal/outbox/domain"
)

const metricsDomain = "outbox"

// DispatcherConfig holds the dispatcher tuning knobs.
type DispatcherConfig struct {
	BatchSize         int
	Workers           int
	MaxRetries        int
	RetryCooldown     time.Duration
	ProcessingTimeout time.Duration
	HandlerTimeout    time.Duration
	// Now is the clock; nil means time.Now in UTC.
	Now func() time.Time
}

// DefaultDispatcherConfig returns the default dispatcher configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BatchSize:         100,
		Workers:           4,
		MaxRetries:        3,
		RetryCooldown:     5 * time.Minute,
		ProcessingTimeout: 5 * time.Minute,
		HandlerTimeout:    30 * time.Second,
	}
}

func (c DispatcherConfig) normalize() DispatcherConfig {
	defaults := DefaultDispatcherConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.RetryCooldown < 0 {
		c.RetryCooldown = defaults.RetryCooldown
	}
	if c.ProcessingTimeout <= 0 {
		c.ProcessingTimeout = defaults.ProcessingTimeout
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = defaults.HandlerTimeout
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
	return c
}

// CycleResult summarizes one dispatch cycle.
type CycleResult struct {
	Claimed      int `json:"claimed"`
	Processed    int `json:"processed"`
	Failed       int `json:"failed"`
	DeadLettered int `json:"dead_lettered"`
	Released     int `json:"released"`
}

// Dispatcher claims due outbox events and delivers them through a Handler.
//
// A claim is a short transaction that locks candidate rows with SKIP LOCKED and marks
// them PROCESSING, so several dispatcher instances never hand the same event to a handler
// at the same time. Only the oldest unfinished event of each aggregate is claimable, which
// keeps delivery in creation order per aggregate. Each outcome is written in its own
// transaction after the handler returns.
type Dispatcher struct {
	txManager database.TxManager
	repo      OutboxEventRepository
	handler   Handler
	metrics   metrics.BusinessMetrics
	logger    *slog.Logger
	cfg       DispatcherConfig
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	txManager database.TxManager,
	repo OutboxEventRepository,
	handler Handler,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
	cfg DispatcherConfig,
) *Dispatcher {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &Dispatcher{
		txManager: txManager,
		repo:      repo,
		handler:   handler,
		metrics:   businessMetrics,
		logger:    logger,
		cfg:       cfg.normalize(),
	}
}

type claimSource func(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error)

type claimedEvent struct {
	event             *domain.OutboxEvent
	previousStatus    domain.OutboxEventStatus
	previousUpdatedAt time.Time
}

// ProcessPending reclaims stale PROCESSING events and claims PENDING events.
func (d *Dispatcher) ProcessPending(ctx context.Context) (CycleResult, error) {
	return d.run(ctx, "process_pending", d.staleSource, d.pendingSource)
}

// RetryFailed claims FAILED events below the retry limit whose last attempt is older than the cooldown.
func (d *Dispatcher) RetryFailed(ctx context.Context) (CycleResult, error) {
	return d.run(ctx, "retry_failed", d.retryableSource)
}

// Dispatch runs stale reclaim, retries and pending delivery in a single cycle.
func (d *Dispatcher) Dispatch(ctx context.Context) (CycleResult, error) {
	return d.run(ctx, "dispatch", d.staleSource, d.retryableSource, d.pendingSource)
}

func (d *Dispatcher) staleSource(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error) {
	return d.repo.ClaimStaleProcessing(ctx, now.Add(-d.cfg.ProcessingTimeout), limit)
}

func (d *Dispatcher) retryableSource(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error) {
	return d.repo.ClaimRetryable(ctx, d.cfg.MaxRetries, now.Add(-d.cfg.RetryCooldown), limit)
}

func (d *Dispatcher) pendingSource(ctx context.Context, _ time.Time, limit int) ([]*domain.OutboxEvent, error) {
	return d.repo.ClaimPending(ctx, limit)
}

func (d *Dispatcher) run(ctx context.Context, operation string, sources ...claimSource) (CycleResult, error) {
	start := time.Now()
	result, err := d.cycle(ctx, sources)

	status := "success"
	if err != nil {
		status = "error"
	}
	d.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	d.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)

	if result.Claimed > 0 || err != nil {
		d.logger.Info("outbox cycle finished",
			slog.String("operation", operation),
			slog.Int("claimed", result.Claimed),
			slog.Int("processed", result.Processed),
			slog.Int("failed", result.Failed),
			slog.Int("dead_lettered", result.DeadLettered),
			slog.Int("released", result.Released),
			slog.Any("error", err),
		)
	}
	return result, err
}

func (d *Dispatcher) cycle(ctx context.Context, sources []claimSource) (CycleResult, error) {
	var result CycleResult

	if err := ctx.Err(); err != nil {
		return result, err
	}

	claimed, err := d.claim(ctx, sources)
	if err != nil {
		return result, apperrors.Wrap(err, "failed to claim outbox events")
	}
	result.Claimed = len(claimed)
	if len(claimed) == 0 {
		return result, nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(fn func(r *CycleResult), err error) {
		mu.Lock()
		defer mu.Unlock()
		if fn != nil {
			fn(&result)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(d.cfg.Workers)
	for _, c := range claimed {
		if ctx.Err() != nil {
			d.recordRelease(ctx, c, record)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				d.recordRelease(ctx, c, record)
				return nil
			}
			outcome, err := d.deliver(ctx, c.event)
			record(func(r *CycleResult) {
				switch outcome {
				case domain.OutboxEventStatusProcessed:
					r.Processed++
				case domain.OutboxEventStatusFailed:
					r.Failed++
				case domain.OutboxEventStatusDeadLetter:
					r.DeadLettered++
				}
			}, err)
			return nil
		})
	}
	_ = g.Wait()

	return result, apperrors.Join(errs...)
}

// claim locks and marks up to BatchSize events as PROCESSING in one transaction.
func (d *Dispatcher) claim(ctx context.Context, sources []claimSource) ([]claimedEvent, error) {
	var claimed []claimedEvent

	err := d.txManager.WithTx(ctx, func(txCtx context.Context) error {
		claimed = claimed[:0]
		now := d.cfg.Now()
		seen := make(map[string]struct{})

		for _, source := range sources {
			remaining := d.cfg.BatchSize - len(claimed)
			if remaining <= 0 {
				break
			}

			events, err := source(txCtx, now, remaining)
			if err != nil {
				return err
			}

			for _, event := range events {
				key := event.AggregateType + "\x00" + event.AggregateID
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}

				c := claimedEvent{
					event:             event,
					previousStatus:    event.Status,
					previousUpdatedAt: event.UpdatedAt,
				}
				if err := event.MarkProcessing(now); err != nil {
					return err
				}
				if err := d.repo.Update(txCtx, event); err != nil {
					return err
				}
				claimed = append(claimed, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// deliver invokes the handler and persists the outcome.
func (d *Dispatcher) deliver(ctx context.Context, event *domain.OutboxEvent) (domain.OutboxEventStatus, error) {
	start := time.Now()
	handleErr := d.invoke(ctx, event)

	// Outcomes are persisted even when the cycle is being cancelled.
	finalizeCtx := context.WithoutCancel(ctx)
	err := d.txManager.WithTx(finalizeCtx, func(txCtx context.Context) error {
		now := d.cfg.Now()
		if handleErr == nil {
			if err := event.MarkProcessed(now); err != nil {
				return err
			}
		} else {
			cause := handleErr
			var unknown *domain.UnknownEventTypeError
			if !apperrors.As(handleErr, &unknown) {
				cause = &domain.HandlerError{EventID: event.ID, EventType: event.EventType, Err: handleErr}
			}
			if err := event.MarkFailed(cause, d.cfg.MaxRetries, now); err != nil {
				return err
			}
		}
		return d.repo.Update(txCtx, event)
	})
	if err != nil {
		d.logger.Error("failed to record outbox event outcome",
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", event.EventType),
			slog.Any("error", err),
		)
		return "", apperrors.Wrapf(err, "failed to record outcome of event %s", event.ID)
	}

	status := string(event.Status)
	d.metrics.RecordOperation(ctx, metricsDomain, "event_delivery", status)
	d.metrics.RecordDuration(ctx, metricsDomain, "event_delivery", time.Since(start), status)
	d.metrics.RecordOutcome(ctx, metricsDomain, event.EventType, status)

	if handleErr != nil {
		d.logger.Warn("outbox event delivery failed",
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int("retry_count", event.RetryCount),
			slog.String("status", status),
			slog.Any("error", handleErr),
		)
	}
	return event.Status, nil
}

// invoke runs the handler bounded by HandlerTimeout and turns a panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, event *domain.OutboxEvent) error {
	handlerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.HandlerTimeout)
	defer cancel()

	snapshot := *event
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("handler panicked: %v", r)
			}
		}()
		done <- d.handler.Handle(handlerCtx, &snapshot)
	}()

	var err error
	select {
	case err = <-done:
	case <-handlerCtx.Done():
		err = handlerCtx.Err()
	}
	if err != nil && errors.Is(handlerCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("handler timed out after %s: %w", d.cfg.HandlerTimeout, err)
	}
	return err
}

func (d *Dispatcher) recordRelease(
	ctx context.Context,
	c claimedEvent,
	record func(fn func(r *CycleResult), err error),
) {
	if err := d.release(ctx, c); err != nil {
		record(nil, apperrors.Wrapf(err, "failed to release event %s", c.event.ID))
		return
	}
	record(func(r *CycleResult) { r.Released++ }, nil)
}

func (d *Dispatcher) release(ctx context.Context, c claimedEvent) error {
	return d.txManager.WithTx(context.WithoutCancel(ctx), func(txCtx context.Context) error {
		if err := c.event.Release(c.previousStatus, c.previousUpdatedAt); err != nil {
			return err
		}
		return d.repo.Update(txCtx, c.event)
	})
}
