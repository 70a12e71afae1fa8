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

const mysqlEventColumns = `e.id, e.aggregate_type, e.aggregate_id, e.event_type, e.payload, e.status,
		e.retry_count, e.error_message, e.processed_at, e.created_at, e.updated_at`

const mysqlHeadOfAggregate = `NOT EXISTS (
		SELECT 1 FROM outbox_events prior
		WHERE prior.aggregate_type = e.aggregate_type
		  AND prior.aggregate_id = e.aggregate_id
		  AND prior.status IN ('PENDING', 'PROCESSING', 'FAILED')
		  AND (prior.created_at < e.created_at OR (prior.created_at = e.created_at AND prior.id < e.id))
	)`

// MySQLOutboxEventRepository handles outbox event persistence for MySQL.
// IDs are stored as BINARY(16); V7 byte order keeps them time sortable.
type MySQLOutboxEventRepository struct {
	db *sql.DB
}

// NewMySQLOutboxEventRepository creates a new MySQLOutboxEventRepository
func NewMySQLOutboxEventRepository(db *sql.DB) *MySQLOutboxEventRepository {
	return &MySQLOutboxEventRepository{
		db: db,
	}
}

// Create inserts a new outbox event
func (r *MySQLOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, payload, status,
			  retry_count, error_message, processed_at, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	// Convert UUID to bytes for MySQL BINARY(16)
	idBytes, err := event.ID.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, query, idBytes, event.AggregateType, event.AggregateID,
		event.EventType, event.Payload, event.Status, event.RetryCount, event.ErrorMessage,
		event.ProcessedAt, event.CreatedAt, event.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}

// Update persists the mutable lifecycle fields of an event
func (r *MySQLOutboxEventRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := event.ID.MarshalBinary()
	if err != nil {
		return err
	}

	query := `UPDATE outbox_events
			  SET status = ?, retry_count = ?, error_message = ?, processed_at = ?, updated_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, event.Status, event.RetryCount, event.ErrorMessage,
		event.ProcessedAt, event.UpdatedAt, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to update outbox event")
	}
	// MySQL reports changed rows, so an update that rewrites identical values affects zero rows.
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.Get(ctx, event.ID); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves an event by ID
func (r *MySQLOutboxEventRepository) Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + mysqlEventColumns + ` FROM outbox_events e WHERE e.id = ?`

	event, err := scanMySQLEvent(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOutboxEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox event")
	}
	return event, nil
}

// FindPending returns every PENDING event, oldest first, without locking or
// filtering by aggregate.
func (r *MySQLOutboxEventRepository) FindPending(
	ctx context.Context,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + mysqlEventColumns + `
			  FROM outbox_events e
			  WHERE e.status = ?
			  ORDER BY e.created_at ASC, e.id ASC
			  LIMIT ?`

	return r.query(ctx, query, domain.OutboxEventStatusPending, limit)
}

// FindRetryable returns every FAILED event below maxRetries whose last attempt is not
// after notBefore, oldest first, without locking or filtering by aggregate.
func (r *MySQLOutboxEventRepository) FindRetryable(
	ctx context.Context,
	maxRetries int,
	notBefore time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + mysqlEventColumns + `
			  FROM outbox_events e
			  WHERE e.status = ?
			    AND e.retry_count < ?
			    AND e.updated_at <= ?
			  ORDER BY e.created_at ASC, e.id ASC
			  LIMIT ?`

	return r.query(ctx, query, domain.OutboxEventStatusFailed, maxRetries, notBefore, limit)
}

// ClaimPending returns claimable PENDING events, oldest first, locking the returned rows
func (r *MySQLOutboxEventRepository) ClaimPending(
	ctx context.Context,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + mysqlEventColumns + `
			  FROM outbox_events e
			  WHERE e.status = ?
			    AND ` + mysqlHeadOfAggregate + `
			  ORDER BY e.created_at ASC, e.id ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	return r.query(ctx, query, domain.OutboxEventStatusPending, limit)
}

// ClaimRetryable returns claimable FAILED events whose last attempt is not after notBefore
func (r *MySQLOutboxEventRepository) ClaimRetryable(
	ctx context.Context,
	maxRetries int,
	notBefore time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + mysqlEventColumns + `
			  FROM outbox_events e
			  WHERE e.status = ?
			    AND e.retry_count < ?
			    AND e.updated_at <= ?
			    AND ` + mysqlHeadOfAggregate + `
			  ORDER BY e.created_at ASC, e.id ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	return r.query(ctx, query, domain.OutboxEventStatusFailed, maxRetries, notBefore, limit)
}

// ClaimStaleProcessing returns PROCESSING events not touched since staleBefore
func (r *MySQLOutboxEventRepository) ClaimStaleProcessing(
	ctx context.Context,
	staleBefore time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + mysqlEventColumns + `
			  FROM outbox_events e
			  WHERE e.status = ?
			    AND e.updated_at < ?
			    AND ` + mysqlHeadOfAggregate + `
			  ORDER BY e.created_at ASC, e.id ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	return r.query(ctx, query, domain.OutboxEventStatusProcessing, staleBefore, limit)
}

// FindByAggregate returns every event of an aggregate in creation order
func (r *MySQLOutboxEventRepository) FindByAggregate(
	ctx context.Context,
	aggregateType, aggregateID string,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + mysqlEventColumns + `
			  FROM outbox_events e
			  WHERE e.aggregate_type = ? AND e.aggregate_id = ?
			  ORDER BY e.created_at ASC, e.id ASC`

	return r.query(ctx, query, aggregateType, aggregateID)
}

// FindByEventType returns the most recent events of a type
func (r *MySQLOutboxEventRepository) FindByEventType(
	ctx context.Context,
	eventType string,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + mysqlEventColumns + `
			  FROM outbox_events e
			  WHERE e.event_type = ?
			  ORDER BY e.created_at DESC, e.id DESC
			  LIMIT ?`

	return r.query(ctx, query, eventType, limit)
}

// CountByStatus returns the number of events per status
func (r *MySQLOutboxEventRepository) CountByStatus(
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
func (r *MySQLOutboxEventRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx,
		`DELETE FROM outbox_events WHERE status = ? AND processed_at < ?`,
		domain.OutboxEventStatusProcessed, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete processed outbox events")
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMySQLEvent(row rowScanner) (*domain.OutboxEvent, error) {
	var (
		event   domain.OutboxEvent
		idBytes []byte
	)

	err := row.Scan(&idBytes, &event.AggregateType, &event.AggregateID, &event.EventType,
		&event.Payload, &event.Status, &event.RetryCount, &event.ErrorMessage, &event.ProcessedAt,
		&event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return nil, err
	}

	// Convert bytes back to UUID
	if err := event.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *MySQLOutboxEventRepository) query(
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
		event, err := scanMySQLEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
