package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/orderflow/internal/database"
	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/saga/domain"
)

// MySQLSagaRepository handles saga persistence for MySQL. IDs are stored as BINARY(16).
type MySQLSagaRepository struct {
	db *sql.DB
}

// NewMySQLSagaRepository creates a new MySQLSagaRepository
func NewMySQLSagaRepository(db *sql.DB) *MySQLSagaRepository {
	return &MySQLSagaRepository{
		db: db,
	}
}

// Create inserts a new saga
func (r *MySQLSagaRepository) Create(ctx context.Context, saga *domain.SagaTransaction) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := saga.ID.MarshalBinary()
	if err != nil {
		return err
	}
	text, err := encodeSaga(saga)
	if err != nil {
		return err
	}

	query := `INSERT INTO saga_transactions (` + sagaColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, idBytes, saga.SagaType, saga.BusinessID, saga.Status,
		saga.CurrentStep, text.stepNames, text.executedSteps, text.compensatedSteps, text.data,
		saga.ErrorMessage, saga.Version, saga.CreatedAt, saga.UpdatedAt, saga.CompletedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create saga")
	}
	return nil
}

// Update persists saga progress when the stored version still matches and bumps the version.
// The version column always changes, so the affected row count is reliable on MySQL.
func (r *MySQLSagaRepository) Update(ctx context.Context, saga *domain.SagaTransaction) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := saga.ID.MarshalBinary()
	if err != nil {
		return err
	}
	text, err := encodeSaga(saga)
	if err != nil {
		return err
	}

	query := `UPDATE saga_transactions
			  SET status = ?, current_step = ?, executed_steps = ?, compensated_steps = ?,
			      saga_data = ?, error_message = ?, updated_at = ?, completed_at = ?,
			      version = version + 1
			  WHERE id = ? AND version = ?`

	result, err := querier.ExecContext(ctx, query, saga.Status, saga.CurrentStep, text.executedSteps,
		text.compensatedSteps, text.data, saga.ErrorMessage, saga.UpdatedAt, saga.CompletedAt,
		idBytes, saga.Version)
	if err != nil {
		return apperrors.Wrap(err, "failed to update saga")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrSagaConflict
	}
	saga.Version++
	return nil
}

// Get retrieves a saga by ID
func (r *MySQLSagaRepository) Get(ctx context.Context, id uuid.UUID) (*domain.SagaTransaction, error) {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + sagaColumns + ` FROM saga_transactions WHERE id = ?`
	return r.one(querier.QueryRowContext(ctx, query, idBytes))
}

// GetByBusinessID retrieves the most recent saga for a business identifier
func (r *MySQLSagaRepository) GetByBusinessID(
	ctx context.Context,
	businessID string,
) (*domain.SagaTransaction, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + sagaColumns + ` FROM saga_transactions
			  WHERE business_id = ?
			  ORDER BY created_at DESC, id DESC
			  LIMIT 1`
	return r.one(querier.QueryRowContext(ctx, query, businessID))
}

// ListByStatus returns sagas in a status, oldest first
func (r *MySQLSagaRepository) ListByStatus(
	ctx context.Context,
	status domain.SagaStatus,
	limit int,
) ([]*domain.SagaTransaction, error) {
	query := `SELECT ` + sagaColumns + ` FROM saga_transactions
			  WHERE status = ?
			  ORDER BY created_at ASC, id ASC
			  LIMIT ?`
	return r.query(ctx, query, status, limit)
}

// ListBySagaTypeAndStatus returns sagas of a type in a status, oldest first
func (r *MySQLSagaRepository) ListBySagaTypeAndStatus(
	ctx context.Context,
	sagaType string,
	status domain.SagaStatus,
	limit int,
) ([]*domain.SagaTransaction, error) {
	query := `SELECT ` + sagaColumns + ` FROM saga_transactions
			  WHERE saga_type = ? AND status = ?
			  ORDER BY created_at ASC, id ASC
			  LIMIT ?`
	return r.query(ctx, query, sagaType, status, limit)
}

// ListStale returns sagas in one of statuses that were last updated before updatedBefore
func (r *MySQLSagaRepository) ListStale(
	ctx context.Context,
	statuses []domain.SagaStatus,
	updatedBefore time.Time,
	limit int,
) ([]*domain.SagaTransaction, error) {
	if len(statuses) == 0 {
		return []*domain.SagaTransaction{}, nil
	}

	query := fmt.Sprintf(`SELECT `+sagaColumns+` FROM saga_transactions
			  WHERE status IN (%s) AND updated_at < ?
			  ORDER BY updated_at ASC, id ASC
			  LIMIT ?`, placeholders(len(statuses), 1, func(int) string { return "?" }))

	args := append(statusArgs(statuses), updatedBefore, limit)
	return r.query(ctx, query, args...)
}

// CountByStatus returns the number of sagas per status
func (r *MySQLSagaRepository) CountByStatus(ctx context.Context) (map[domain.SagaStatus]int64, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, `SELECT status, COUNT(*) FROM saga_transactions GROUP BY status`)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count sagas")
	}
	return scanStatusCounts(rows)
}

// DeleteFinishedBefore removes up to limit COMPLETED and COMPENSATED sagas finished before cutoff
func (r *MySQLSagaRepository) DeleteFinishedBefore(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM saga_transactions
			  WHERE status IN (?, ?) AND completed_at < ?
			  ORDER BY completed_at ASC
			  LIMIT ?`

	result, err := querier.ExecContext(ctx, query, domain.SagaStatusCompleted, domain.SagaStatusCompensated,
		cutoff, limit)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete finished sagas")
	}
	return result.RowsAffected()
}

func scanMySQLSaga(row rowScanner) (*domain.SagaTransaction, error) {
	var (
		saga    domain.SagaTransaction
		text    sagaText
		idBytes []byte
	)

	err := row.Scan(&idBytes, &saga.SagaType, &saga.BusinessID, &saga.Status, &saga.CurrentStep,
		&text.stepNames, &text.executedSteps, &text.compensatedSteps, &text.data, &saga.ErrorMessage,
		&saga.Version, &saga.CreatedAt, &saga.UpdatedAt, &saga.CompletedAt)
	if err != nil {
		return nil, err
	}
	if err := saga.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, err
	}
	if err := text.decodeInto(&saga); err != nil {
		return nil, err
	}
	return &saga, nil
}

func (r *MySQLSagaRepository) one(row *sql.Row) (*domain.SagaTransaction, error) {
	saga, err := scanMySQLSaga(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSagaNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get saga")
	}
	return saga, nil
}

func (r *MySQLSagaRepository) query(
	ctx context.Context,
	query string,
	args ...any,
) ([]*domain.SagaTransaction, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query sagas")
	}
	defer rows.Close() //nolint:errcheck

	sagas := make([]*domain.SagaTransaction, 0)
	for rows.Next() {
		saga, err := scanMySQLSaga(rows)
		if err != nil {
			return nil, err
		}
		sagas = append(sagas, saga)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sagas, nil
}
