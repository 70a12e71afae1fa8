// Package repository provides data persistence implementations for outbox entities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/orderflow/internal/database"
	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/outbox/domain"
)

const pgEventColumns = `e.id, e.aggregate_type, e.aggregate_id, e.event_type, e.payload, e.status,
		e.retry_count, e.error_message, e.processed_at, e.created_at, e.updated_at`

// pgHeadOfAggregate keeps only events with no older unfinished sibling in the same aggregate.
const pgHeadOfAggregate = `NOT EXISTS (
		SELECT 1 FROM outbox_events prior
		WHERE prior.aggregate_type = e.aggregate_type
		  AND prior.aggregate_id = e.aggregate_id
		  AND prior.status IN ('PENDING', 'PROCESSING', 'FAILED')
		  AND (prior.created_at < e.created_at OR (prior.created_at = e.created_at AND prior.id < e.id))
	)`

// PostgreSQLOutboxEventRepository handles outbox event persistence for PostgreSQL
type PostgreSQLOutboxEventRepository struct {
	db *sql.DB
}

// NewPostgreSQLOutboxEventRepository creates a new PostgreSQLOutboxEventRepository
func NewPostgreSQLOutboxEventRepository(db *sql.DB) *PostgreSQLOutboxEventRepository {
	return &PostgreSQLOutboxEventRepository{
		db: db,
	}
}

// Create inserts a new outbox event
func (r *PostgreSQLOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, payload, status,
			  retry_count, error_message, processed_at, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := querier.ExecContext(ctx, query, event.ID, event.AggregateType, event.AggregateID,
		event.EventType, event.Payload, event.Status, event.RetryCount, event.ErrorMessage,
		event.ProcessedAt, event.CreatedAt, event.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}

// Update persists the mutable lifecycle fields of an event
func (r *PostgreSQLOutboxEventRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1, retry_count = $2, error_message = $3, processed_at = $4, updated_at = $5
			  WHERE id = $6`

	result, err := querier.ExecContext(ctx, query, event.Status, event.RetryCount, event.ErrorMessage,
		event.ProcessedAt, event.UpdatedAt, event.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update outbox event")
	}
	return expectOneRow(result)
}

// Get retrieves an event by ID
func (r *PostgreSQLOutboxEventRepository) Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + pgEventColumns + ` FROM outbox_events e WHERE e.id = $1`

	var event domain.OutboxEvent
	err := querier.QueryRowContext(ctx, query, id).Scan(&event.ID, &event.AggregateType,
		&event.AggregateID, &event.EventType, &event.Payload, &event.Status, &event.RetryCount,
		&event.ErrorMessage, &event.ProcessedAt, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOutboxEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox event")
	}
	return &event, nil
}

// FindPending returns every PENDING event, oldest first, without locking or
// filtering by aggregate.
func (r *PostgreSQLOutboxEventRepository) FindPending(
	ctx context.Context,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + pgEventColumns + `
			  FROM outbox_events e
			  WHERE e.status = $1
			  ORDER BY e.created_at ASC, e.id ASC
			  LIMIT $2`

	return r.query(ctx, query, domain.OutboxEventStatusPending, limit)
}

// FindRetryable returns every FAILED event below maxRetries whose last attempt is not
// after notBefore, oldest first, without locking or filtering by aggregate.
func (r *PostgreSQLOutboxEventRepository) FindRetryable(
	ctx context.Context,
	maxRetries int,
	notBefore time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + pgEventColumns + `
			  FROM outbox_events e
			  WHERE e.status = $1
			    AND e.retry_count < $2
			    AND e.updated_at <= $3
			  ORDER BY e.created_at ASC, e.id ASC
			  LIMIT $4`

	return r.query(ctx, query, domain.OutboxEventStatusFailed, maxRetries, notBefore, limit)
}

// ClaimPending returns claimable PENDING events, oldest first, locking the returned rows
func (r *PostgreSQLOutboxEventRepository) ClaimPending(
	ctx context.Context,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + pgEventColumns + `
			  FROM outbox_events e
			  WHERE e.status = $1
			    AND ` + pgHeadOfAggregate + `
			  ORDER BY e.created_at ASC, e.id ASC
			  LIMIT $2
			  FOR UPDATE OF e SKIP LOCKED`

	return r.query(ctx, query, domain.OutboxEventStatusPending, limit)
}

// ClaimRetryable returns claimable FAILED events whose last attempt is not after notBefore
func (r *PostgreSQLOutboxEventRepository) ClaimRetryable(
	ctx context.Context,
	maxRetries int,
	notBefore time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + pgEventColumns + `
			  FROM outbox_events e
			  WHERE e.status = $1
			    AND e.retry_count < $2
			    AND e.updated_at <= $3
			    AND ` + pgHeadOfAggregate + `
			  ORDER BY e.created_at ASC, e.id ASC
			  LIMIT $4
			  FOR UPDATE OF e SKIP LOCKED`

	return r.query(ctx, query, domain.OutboxEventStatusFailed, maxRetries, notBefore, limit)
}

// ClaimStaleProcessing returns PROCESSING events not touched since staleBefore
func (r *PostgreSQLOutboxEventRepository) ClaimStaleProcessing(
	ctx context.Context,
	staleBefore time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + pgEventColumns + `
			  FROM outbox_events e
			  WHERE e.status = $1
			    AND e.updated_at < $2
			    AND ` + pgHeadOfAggregate + `
			  ORDER BY e.created_at ASC, e.id ASC
			  LIMIT $3
			  FOR UPDATE OF e SKIP LOCKED`

	return r.query(ctx, query, domain.OutboxEventStatusProcessing, staleBefore, limit)
}

// FindByAggregate returns every event of an aggregate in creation order
func (r *PostgreSQLOutboxEventRepository) FindByAggregate(
	ctx context.Context,
	aggregateType, aggregateID string,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + pgEventColumns + `
			  FROM outbox_events e
			  WHERE e.aggregate_type = $1 AND e.aggregate_id = $2
			  ORDER BY e.created_at ASC, e.id ASC`

	return r.query(ctx, query, aggregateType, aggregateID)
}

// FindByEventType returns the most recent events of a type
func (r *PostgreSQLOutboxEventRepository) FindByEventType(
	ctx context.Context,
	eventType string,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + pgEventColumns + `
			  FROM outbox_events e
			  WHERE e.event_type = $1
			  ORDER BY e.created_at DESC, e.id DESC
			  LIMIT $2`

	return r.query(ctx, query, eventType, limit)
}

// CountByStatus returns the number of events per status
func (r *PostgreSQLOutboxEventRepository) CountByStatus(
	ctx context.Context,
) (map[domain.OutboxEventStatus]int64, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox_events GROUP BY status`)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count outbox events")
	}
	return scanStatusCounts(rows)
}

// DeleteProcessedBefore removes PROCESSED events delivered before cutoff
func (r *PostgreSQLOutboxEventRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx,
		`DELETE FROM outbox_events WHERE status = $1 AND processed_at < $2`,
		domain.OutboxEventStatusProcessed, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete processed outbox events")
	}
	return result.RowsAffected()
}

func (r *PostgreSQLOutboxEventRepository) query(
	ctx context.Context,
	query string,
	args ...any,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query outbox events")
	}
	defer rows.Close() //nolint:errcheck

	events := make([]*domain.OutboxEvent, 0)
	for rows.Next() {
		var event domain.OutboxEvent

		err := rows.Scan(&event.ID, &event.AggregateType, &event.AggregateID, &event.EventType,
			&event.Payload, &event.Status, &event.RetryCount, &event.ErrorMessage, &event.ProcessedAt,
			&event.CreatedAt, &event.UpdatedAt)
		if err != nil {
			return nil, err
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func scanStatusCounts(rows *sql.Rows) (map[domain.OutboxEventStatus]int64, error) {
	defer rows.Close() //nolint:errcheck

	counts := make(map[domain.OutboxEventStatus]int64)
	for rows.Next() {
		var (
			status domain.OutboxEventStatus
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func expectOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrOutboxEventNotFound
	}
	return nil
}
