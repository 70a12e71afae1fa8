package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	orderDomain "github.com/allisson/orderflow/internal/order/domain"
	sagaDomain "github.com/allisson/orderflow/internal/saga/domain"
)

type mockSagaStarter struct {
	mock.Mock
}

func (m *mockSagaStarter) StartSaga(
	ctx context.Context,
	sagaType, businessID string,
	data *sagaDomain.Data,
	steps []sagaDomain.Step,
) (*sagaDomain.SagaTransaction, error) {
	args := m.Called(ctx, sagaType, businessID, data, steps)
	return sagaOrNil(args)
}

func (m *mockSagaStarter) ResumeSaga(
	ctx context.Context,
	id uuid.UUID,
	steps []sagaDomain.Step,
) (*sagaDomain.SagaTransaction, error) {
	args := m.Called(ctx, id, steps)
	return sagaOrNil(args)
}

type mockStepResolver struct {
	mock.Mock
}

func (m *mockStepResolver) Steps(sagaType string) ([]sagaDomain.Step, error) {
	args := m.Called(sagaType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sagaDomain.Step), args.Error(1)
}

type mockSagaRepository struct {
	mock.Mock
}

func (m *mockSagaRepository) Get(ctx context.Context, id uuid.UUID) (*sagaDomain.SagaTransaction, error) {
	args := m.Called(ctx, id)
	return sagaOrNil(args)
}

func sagaOrNil(args mock.Arguments) (*sagaDomain.SagaTransaction, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sagaDomain.SagaTransaction), args.Error(1)
}

// mockBusinessMetrics is a local mock for metrics.BusinessMetrics.
type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

func (m *mockBusinessMetrics) RecordOutcome(ctx context.Context, domain, kind, outcome string) {
	m.Called(ctx, domain, kind, outcome)
}

type mockOutboxOrderUseCase struct {
	mock.Mock
}

func (m *mockOutboxOrderUseCase) CreateOrderWithOutbox(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
	simulateFailure bool,
) (*orderDomain.Order, error) {
	args := m.Called(ctx, customerName, productName, amount, simulateFailure)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderDomain.Order), args.Error(1)
}

func (m *mockOutboxOrderUseCase) CancelOrderWithOutbox(
	ctx context.Context,
	orderID uuid.UUID,
	reason string,
) (*orderDomain.Order, error) {
	args := m.Called(ctx, orderID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderDomain.Order), args.Error(1)
}

func (m *mockOutboxOrderUseCase) CreateMultipleOrdersWithOutbox(
	ctx context.Context,
	count int,
	customerName string,
	simulateFailure bool,
) ([]*orderDomain.Order, error) {
	args := m.Called(ctx, count, customerName, simulateFailure)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*orderDomain.Order), args.Error(1)
}

type mockSagaOrderUseCase struct {
	mock.Mock
}

func (m *mockSagaOrderUseCase) CreateOrder(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
) (*sagaDomain.SagaTransaction, error) {
	return sagaOrNil(m.Called(ctx, customerName, productName, amount))
}

func (m *mockSagaOrderUseCase) CreateOrderWithMessageFailure(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
) (*sagaDomain.SagaTransaction, error) {
	return sagaOrNil(m.Called(ctx, customerName, productName, amount))
}

func (m *mockSagaOrderUseCase) CreateOrderWithUpdateFailure(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
) (*sagaDomain.SagaTransaction, error) {
	return sagaOrNil(m.Called(ctx, customerName, productName, amount))
}

func (m *mockSagaOrderUseCase) ResumeSaga(ctx context.Context, id uuid.UUID) (*sagaDomain.SagaTransaction, error) {
	return sagaOrNil(m.Called(ctx, id))
}
