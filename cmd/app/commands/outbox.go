package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/orderflow/internal/errors"
	outboxDomain "github.com/allisson/orderflow/internal/outbox/domain"
	outboxUsecase "github.com/allisson/orderflow/internal/outbox/usecase"
	"github.com/allisson/orderflow/internal/scheduler"
)

// OutboxFullDispatcher runs stale reclaim, retries and pending delivery in one cycle.
type OutboxFullDispatcher interface {
	Dispatch(ctx context.Context) (outboxUsecase.CycleResult, error)
}

// OutboxEventFinder lists outbox events without claiming them.
type OutboxEventFinder interface {
	FindPending(ctx context.Context, limit int) ([]*outboxDomain.OutboxEvent, error)
	FindRetryable(
		ctx context.Context,
		maxRetries int,
		notBefore time.Time,
		limit int,
	) ([]*outboxDomain.OutboxEvent, error)
	FindByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]*outboxDomain.OutboxEvent, error)
	FindByEventType(ctx context.Context, eventType string, limit int) ([]*outboxDomain.OutboxEvent, error)
}

// OutboxEventQuery selects which events list-outbox-events prints. At most one of
// EventType, the aggregate pair or Retryable may be set; none lists PENDING events.
type OutboxEventQuery struct {
	EventType     string
	AggregateType string
	AggregateID   string
	Retryable     bool
	Limit         int
	MaxRetries    int
	RetryCooldown time.Duration
}

type outboxEventOutput struct {
	ID            uuid.UUID  `json:"id"`
	AggregateType string     `json:"aggregate_type"`
	AggregateID   string     `json:"aggregate_id"`
	EventType     string     `json:"event_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func newOutboxEventOutput(event *outboxDomain.OutboxEvent) outboxEventOutput {
	return outboxEventOutput{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Status:        string(event.Status),
		RetryCount:    event.RetryCount,
		ErrorMessage:  event.ErrorMessage,
		ProcessedAt:   event.ProcessedAt,
		CreatedAt:     event.CreatedAt,
		UpdatedAt:     event.UpdatedAt,
	}
}

func writeCycle(w io.Writer, operation string, result outboxUsecase.CycleResult, format string) error {
	if format == FormatJSON {
		return writeJSON(w, map[string]any{
			"operation": operation,
			"result":    result,
		})
	}

	_, _ = fmt.Fprintf(w,
		"%s: claimed=%d processed=%d failed=%d dead_lettered=%d released=%d\n",
		operation, result.Claimed, result.Processed, result.Failed, result.DeadLettered, result.Released,
	)
	return nil
}

// RunProcessOutbox runs one dispatch cycle over pending and stale events.
//
// Requirements: Database must be migrated and accessible.
func RunProcessOutbox(
	ctx context.Context,
	dispatcher scheduler.OutboxDispatcher,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("processing pending outbox events")

	result, err := dispatcher.ProcessPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to process outbox events: %w", err)
	}
	return writeCycle(writer, "process", result, format)
}

// RunDispatchOutbox runs one full cycle: stale PROCESSING events, retryable FAILED
// events and PENDING events, in that order.
//
// Requirements: Database must be migrated and accessible.
func RunDispatchOutbox(
	ctx context.Context,
	dispatcher OutboxFullDispatcher,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("dispatching outbox events")

	result, err := dispatcher.Dispatch(ctx)
	if err != nil {
		return fmt.Errorf("failed to dispatch outbox events: %w", err)
	}
	return writeCycle(writer, "dispatch", result, format)
}

// RunRetryOutbox runs one dispatch cycle over failed events past their cooldown.
//
// Requirements: Database must be migrated and accessible.
func RunRetryOutbox(
	ctx context.Context,
	dispatcher scheduler.OutboxDispatcher,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("retrying failed outbox events")

	result, err := dispatcher.RetryFailed(ctx)
	if err != nil {
		return fmt.Errorf("failed to retry outbox events: %w", err)
	}
	return writeCycle(writer, "retry", result, format)
}

// RunCleanupOutbox deletes processed events delivered more than days ago.
//
// Requirements: Database must be migrated and accessible.
func RunCleanupOutbox(
	ctx context.Context,
	cleaner scheduler.OutboxCleaner,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if days <= 0 {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "days must be a positive number, got: %d", days)
	}

	logger.Info("cleaning processed outbox events", slog.Int("days", days))

	count, err := cleaner.Cleanup(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to cleanup outbox events: %w", err)
	}

	logger.Info("cleanup completed", slog.Int64("count", count), slog.Int("days", days))

	if format == FormatJSON {
		return writeJSON(writer, map[string]any{
			"count": count,
			"days":  days,
		})
	}

	_, _ = fmt.Fprintf(writer, "Successfully deleted %d processed event(s) older than %d day(s)\n", count, days)
	return nil
}

// RunListOutboxEvents prints the events selected by query. Listing never claims or
// locks anything, so it is safe to run next to live dispatchers.
//
// Requirements: Database must be migrated and accessible.
func RunListOutboxEvents(
	ctx context.Context,
	finder OutboxEventFinder,
	logger *slog.Logger,
	writer io.Writer,
	query OutboxEventQuery,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	byAggregate := query.AggregateType != "" || query.AggregateID != ""
	selectors := 0
	for _, set := range []bool{query.EventType != "", byAggregate, query.Retryable} {
		if set {
			selectors++
		}
	}
	if selectors > 1 {
		return apperrors.Wrap(
			apperrors.ErrInvalidInput,
			"--type, --aggregate-type/--aggregate-id and --retryable are mutually exclusive",
		)
	}
	if byAggregate && (query.AggregateType == "" || query.AggregateID == "") {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "--aggregate-type and --aggregate-id must be given together")
	}
	if !byAggregate && query.Limit <= 0 {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "limit must be a positive number, got: %d", query.Limit)
	}

	var (
		events []*outboxDomain.OutboxEvent
		err    error
	)
	switch {
	case query.EventType != "":
		logger.Info("listing outbox events by type", slog.String("event_type", query.EventType))
		events, err = finder.FindByEventType(ctx, query.EventType, query.Limit)
	case byAggregate:
		logger.Info("listing outbox events by aggregate",
			slog.String("aggregate_type", query.AggregateType),
			slog.String("aggregate_id", query.AggregateID),
		)
		events, err = finder.FindByAggregate(ctx, query.AggregateType, query.AggregateID)
	case query.Retryable:
		logger.Info("listing retryable outbox events", slog.Int("max_retries", query.MaxRetries))
		events, err = finder.FindRetryable(ctx, query.MaxRetries, time.Now().UTC().Add(-query.RetryCooldown), query.Limit)
	default:
		logger.Info("listing pending outbox events")
		events, err = finder.FindPending(ctx, query.Limit)
	}
	if err != nil {
		return fmt.Errorf("failed to list outbox events: %w", err)
	}

	if format == FormatJSON {
		output := make([]outboxEventOutput, 0, len(events))
		for _, event := range events {
			output = append(output, newOutboxEventOutput(event))
		}
		return writeJSON(writer, map[string]any{
			"count":  len(output),
			"events": output,
		})
	}

	for _, event := range events {
		_, _ = fmt.Fprintf(writer, "%s %s %s/%s status=%s retries=%d created_at=%s\n",
			event.ID, event.EventType, event.AggregateType, event.AggregateID,
			event.Status, event.RetryCount, event.CreatedAt.Format(time.RFC3339),
		)
	}
	_, _ = fmt.Fprintf(writer, "%d event(s)\n", len(events))
	return nil
}
