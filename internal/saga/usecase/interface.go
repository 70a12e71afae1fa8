// Package usecase implements the saga orchestrator, the saga definition registry and the
// recovery processor that resumes abandoned sagas.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/orderflow/internal/saga/domain"
)

// SagaTransactionRepository defines saga persistence.
//
// Update is optimistic: it only succeeds when the stored version equals saga.Version,
// increments saga.Version on success and returns domain.ErrSagaConflict otherwise.
type SagaTransactionRepository interface {
	Create(ctx context.Context, saga *domain.SagaTransaction) error
	Update(ctx context.Context, saga *domain.SagaTransaction) error
	Get(ctx context.Context, id uuid.UUID) (*domain.SagaTransaction, error)
	GetByBusinessID(ctx context.Context, businessID string) (*domain.SagaTransaction, error)
	ListByStatus(ctx context.Context, status domain.SagaStatus, limit int) ([]*domain.SagaTransaction, error)
	ListBySagaTypeAndStatus(
		ctx context.Context,
		sagaType string,
		status domain.SagaStatus,
		limit int,
	) ([]*domain.SagaTransaction, error)
	ListStale(
		ctx context.Context,
		statuses []domain.SagaStatus,
		updatedBefore time.Time,
		limit int,
	) ([]*domain.SagaTransaction, error)
	CountByStatus(ctx context.Context) (map[domain.SagaStatus]int64, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// SagaRunner starts and resumes sagas.
type SagaRunner interface {
	StartSaga(
		ctx context.Context,
		sagaType, businessID string,
		data *domain.Data,
		steps []domain.Step,
	) (*domain.SagaTransaction, error)
	ResumeSaga(ctx context.Context, id uuid.UUID, steps []domain.Step) (*domain.SagaTransaction, error)
}

// StepResolver returns the steps of a saga type.
type StepResolver interface {
	Steps(sagaType string) ([]domain.Step, error)
}
