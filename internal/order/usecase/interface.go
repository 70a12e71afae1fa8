// Package usecase implements the order business flows: atomic order writes with outbox events
// and order creation driven by sagas.
package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	orderDomain "github.com/allisson/orderflow/internal/order/domain"
	outboxDomain "github.com/allisson/orderflow/internal/outbox/domain"
	sagaDomain "github.com/allisson/orderflow/internal/saga/domain"
)

// OrderRepository defines order persistence.
type OrderRepository interface {
	Create(ctx context.Context, order *orderDomain.Order) error
	Get(ctx context.Context, id uuid.UUID) (*orderDomain.Order, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*orderDomain.Order, error)
	Update(ctx context.Context, order *orderDomain.Order) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// EventCreator appends an event to the outbox within the caller's transaction.
type EventCreator interface {
	CreateEvent(
		ctx context.Context,
		aggregateType, aggregateID, eventType string,
		data any,
	) (*outboxDomain.OutboxEvent, error)
}

// OutboxOrderUseCase writes orders and their events atomically.
type OutboxOrderUseCase interface {
	CreateOrderWithOutbox(
		ctx context.Context,
		customerName, productName string,
		amount decimal.Decimal,
		simulateFailure bool,
	) (*orderDomain.Order, error)
	CancelOrderWithOutbox(ctx context.Context, orderID uuid.UUID, reason string) (*orderDomain.Order, error)
	CreateMultipleOrdersWithOutbox(
		ctx context.Context,
		count int,
		customerName string,
		simulateFailure bool,
	) ([]*orderDomain.Order, error)
}

// SagaStarter starts and resumes sagas.
type SagaStarter interface {
	StartSaga(
		ctx context.Context,
		sagaType, businessID string,
		data *sagaDomain.Data,
		steps []sagaDomain.Step,
	) (*sagaDomain.SagaTransaction, error)
	ResumeSaga(ctx context.Context, id uuid.UUID, steps []sagaDomain.Step) (*sagaDomain.SagaTransaction, error)
}

// StepResolver returns the steps registered for a saga type.
type StepResolver interface {
	Steps(sagaType string) ([]sagaDomain.Step, error)
}

// SagaRepository is the saga lookup needed to resume by id.
type SagaRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*sagaDomain.SagaTransaction, error)
}

// SagaOrderUseCase creates orders through the order saga.
type SagaOrderUseCase interface {
	CreateOrder(
		ctx context.Context,
		customerName, productName string,
		amount decimal.Decimal,
	) (*sagaDomain.SagaTransaction, error)
	CreateOrderWithMessageFailure(
		ctx context.Context,
		customerName, productName string,
		amount decimal.Decimal,
	) (*sagaDomain.SagaTransaction, error)
	CreateOrderWithUpdateFailure(
		ctx context.Context,
		customerName, productName string,
		amount decimal.Decimal,
	) (*sagaDomain.SagaTransaction, error)
	ResumeSaga(ctx context.Context, id uuid.UUID) (*sagaDomain.SagaTransaction, error)
}
