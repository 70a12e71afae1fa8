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

// PostgreSQLSagaRepository handles saga persistence for PostgreSQL
type PostgreSQLSagaRepository struct {
	db *sql.DB
}

// NewPostgreSQLSagaRepository creates a new PostgreSQLSagaRepository
func NewPostgreSQLSagaRepository(db *sql.DB) *PostgreSQLSagaRepository {
	return &PostgreSQLSagaRepository{
		db: db,
	}
}

// Create inserts a new saga
func (r *PostgreSQLSagaRepository) Create(ctx context.Context, saga *domain.SagaTransaction) error {
	querier := database.GetTx(ctx, r.db)

	text, err := encodeSaga(saga)
	if err != nil {
		return err
	}

	query := `INSERT INTO saga_transactions (` + sagaColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = querier.ExecContext(ctx, query, saga.ID, saga.SagaType, saga.BusinessID, saga.Status,
		saga.CurrentStep, text.stepNames, text.executedSteps, text.compensatedSteps, text.data,
		saga.ErrorMessage, saga.Version, saga.CreatedAt, saga.UpdatedAt, saga.CompletedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create saga")
	}
	return nil
}

// Update persists saga progress when the stored version still matches and bumps the version
func (r *PostgreSQLSagaRepository) Update(ctx context.Context, saga *domain.SagaTransaction) error {
	querier := database.GetTx(ctx, r.db)

	text, err := encodeSaga(saga)
	if err != nil {
		return err
	}

	query := `UPDATE saga_transactions
			  SET status = $1, current_step = $2, executed_steps = $3, compensated_steps = $4,
			      saga_data = $5, error_message = $6, updated_at = $7, completed_at = $8,
			      version = version + 1
			  WHERE id = $9 AND version = $10`

	result, err := querier.ExecContext(ctx, query, saga.Status, saga.CurrentStep, text.executedSteps,
		text.compensatedSteps, text.data, saga.ErrorMessage, saga.UpdatedAt, saga.CompletedAt,
		saga.ID, saga.Version)
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
func (r *PostgreSQLSagaRepository) Get(ctx context.Context, id uuid.UUID) (*domain.SagaTransaction, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + sagaColumns + ` FROM saga_transactions WHERE id = $1`
	return r.one(querier.QueryRowContext(ctx, query, id))
}

// GetByBusinessID retrieves the most recent saga for a business identifier
func (r *PostgreSQLSagaRepository) GetByBusinessID(
	ctx context.Context,
	businessID string,
) (*domain.SagaTransaction, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + sagaColumns + ` FROM saga_transactions
			  WHERE business_id = $1
			  ORDER BY created_at DESC, id DESC
			  LIMIT 1`
	return r.one(querier.QueryRowContext(ctx, query, businessID))
}

// ListByStatus returns sagas in a status, oldest first
func (r *PostgreSQLSagaRepository) ListByStatus(
	ctx context.Context,
	status domain.SagaStatus,
	limit int,
) ([]*domain.SagaTransaction, error) {
	query := `SELECT ` + sagaColumns + ` FROM saga_transactions
			  WHERE status = $1
			  ORDER BY created_at ASC, id ASC
			  LIMIT $2`
	return r.query(ctx, query, status, limit)
}

// ListBySagaTypeAndStatus returns sagas of a type in a status, oldest first
func (r *PostgreSQLSagaRepository) ListBySagaTypeAndStatus(
	ctx context.Context,
	sagaType string,
	status domain.SagaStatus,
	limit int,
) ([]*domain.SagaTransaction, error) {
	query := `SELECT ` + sagaColumns + ` FROM saga_transactions
			  WHERE saga_type = $1 AND status = $2
			  ORDER BY created_at ASC, id ASC
			  LIMIT $3`
	return r.query(ctx, query, sagaType, status, limit)
}

// ListStale returns sagas in one of statuses that were last updated before updatedBefore
func (r *PostgreSQLSagaRepository) ListStale(
	ctx context.Context,
	statuses []domain.SagaStatus,
	updatedBefore time.Time,
	limit int,
) ([]*domain.SagaTransaction, error) {
	if len(statuses) == 0 {
		return []*domain.SagaTransaction{}, nil
	}

	n := len(statuses)
	query := fmt.Sprintf(`SELECT `+sagaColumns+` FROM saga_transactions
			  WHERE status IN (%s) AND updated_at < $%d
			  ORDER BY updated_at ASC, id ASC
			  LIMIT $%d`, placeholders(n, 1, pgMarker), n+1, n+2)

	args := append(statusArgs(statuses), updatedBefore, limit)
	return r.query(ctx, query, args...)
}

// CountByStatus returns the number of sagas per status
func (r *PostgreSQLSagaRepository) CountByStatus(ctx context.Context) (map[domain.SagaStatus]int64, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, `SELECT status, COUNT(*) FROM saga_transactions GROUP BY status`)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count sagas")
	}
	return scanStatusCounts(rows)
}

// DeleteFinishedBefore removes up to limit COMPLETED and COMPENSATED sagas finished before cutoff
func (r *PostgreSQLSagaRepository) DeleteFinishedBefore(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM saga_transactions
			  WHERE id IN (
			      SELECT id FROM saga_transactions
			      WHERE status IN ($1, $2) AND completed_at < $3
			      ORDER BY completed_at ASC
			      LIMIT $4
			  )`

	result, err := querier.ExecContext(ctx, query, domain.SagaStatusCompleted, domain.SagaStatusCompensated,
		cutoff, limit)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete finished sagas")
	}
	return result.RowsAffected()
}

func pgMarker(pos int) string {
	return fmt.Sprintf("$%d", pos)
}

func scanPostgreSQLSaga(row rowScanner) (*domain.SagaTransaction, error) {
	var (
		saga domain.SagaTransaction
		text sagaText
	)

	err := row.Scan(&saga.ID, &saga.SagaType, &saga.BusinessID, &saga.Status, &saga.CurrentStep,
		&text.stepNames, &text.executedSteps, &text.compensatedSteps, &text.data, &saga.ErrorMessage,
		&saga.Version, &saga.CreatedAt, &saga.UpdatedAt, &saga.CompletedAt)
	if err != nil {
		return nil, err
	}
	if err := text.decodeInto(&saga); err != nil {
		return nil, err
	}
	return &saga, nil
}

func (r *PostgreSQLSagaRepository) one(row *sql.Row) (*domain.SagaTransaction, error) {
	saga, err := scanPostgreSQLSaga(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSagaNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get saga")
	}
	return saga, nil
}

func (r *PostgreSQLSagaRepository) query(
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
		saga, err := scanPostgreSQLSaga(rows)
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
