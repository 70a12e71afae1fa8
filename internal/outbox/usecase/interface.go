// Package usecase implements the outbox store, the handler registry and the dispatcher
// that moves stored events to PROCESSED or DEAD_LETTER.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/orderflow/internal/outbox/domain"
)

// OutboxEventRepository defines outbox event persistence.
//
// FindPending and FindRetryable are plain reads that return every matching event.
// The Claim* queries used by the dispatcher return, oldest first, only events that
// are the oldest non-terminal event of their aggregate, and lock the returned rows
// (FOR UPDATE SKIP LOCKED) when called inside a transaction.
type OutboxEventRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error
	Update(ctx context.Context, event *domain.OutboxEvent) error
	Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error)
	FindPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	FindRetryable(
		ctx context.Context,
		maxRetries int,
		notBefore time.Time,
		limit int,
	) ([]*domain.OutboxEvent, error)
	ClaimPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	ClaimRetryable(
		ctx context.Context,
		maxRetries int,
		notBefore time.Time,
		limit int,
	) ([]*domain.OutboxEvent, error)
	ClaimStaleProcessing(ctx context.Context, staleBefore time.Time, limit int) ([]*domain.OutboxEvent, error)
	FindByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]*domain.OutboxEvent, error)
	FindByEventType(ctx context.Context, eventType string, limit int) ([]*domain.OutboxEvent, error)
	CountByStatus(ctx context.Context) (map[domain.OutboxEventStatus]int64, error)
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Handler delivers one event. Returning an error counts as a failed attempt.
type Handler interface {
	Handle(ctx context.Context, event *domain.OutboxEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event *domain.OutboxEvent) error

// Handle calls f(ctx, event).
func (f HandlerFunc) Handle(ctx context.Context, event *domain.OutboxEvent) error {
	return f(ctx, event)
}

// DispatchUseCase is the dispatcher entry point used by the scheduler and the CLI.
type DispatchUseCase interface {
	// ProcessPending claims PENDING events and PROCESSING events left behind by a crash.
	ProcessPending(ctx context.Context) (CycleResult, error)
	// RetryFailed claims FAILED events whose cooldown has elapsed.
	RetryFailed(ctx context.Context) (CycleResult, error)
}

// EventStore is the read and maintenance side of the outbox used by operators.
type EventStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error)
	FindByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]*domain.OutboxEvent, error)
	CountByStatus(ctx context.Context) (map[domain.OutboxEventStatus]int64, error)
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}
