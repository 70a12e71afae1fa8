package commands

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	orderDomain "github.com/allisson/orderflow/internal/order/domain"
	outboxDomain "github.com/allisson/orderflow/internal/outbox/domain"
	outboxUsecase "github.com/allisson/orderflow/internal/outbox/usecase"
	sagaDomain "github.com/allisson/orderflow/internal/saga/domain"
	sagaUsecase "github.com/allisson/orderflow/internal/saga/usecase"
)

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

func (m *mockSagaOrderUseCase) saga(args mock.Arguments) (*sagaDomain.SagaTransaction, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sagaDomain.SagaTransaction), args.Error(1)
}

func (m *mockSagaOrderUseCase) CreateOrder(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
) (*sagaDomain.SagaTransaction, error) {
	return m.saga(m.Called(ctx, customerName, productName, amount))
}

func (m *mockSagaOrderUseCase) CreateOrderWithMessageFailure(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
) (*sagaDomain.SagaTransaction, error) {
	return m.saga(m.Called(ctx, customerName, productName, amount))
}

func (m *mockSagaOrderUseCase) CreateOrderWithUpdateFailure(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
) (*sagaDomain.SagaTransaction, error) {
	return m.saga(m.Called(ctx, customerName, productName, amount))
}

func (m *mockSagaOrderUseCase) ResumeSaga(ctx context.Context, id uuid.UUID) (*sagaDomain.SagaTransaction, error) {
	return m.saga(m.Called(ctx, id))
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) ProcessPending(ctx context.Context) (outboxUsecase.CycleResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(outboxUsecase.CycleResult), args.Error(1)
}

func (m *mockDispatcher) RetryFailed(ctx context.Context) (outboxUsecase.CycleResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(outboxUsecase.CycleResult), args.Error(1)
}

func (m *mockDispatcher) Dispatch(ctx context.Context) (outboxUsecase.CycleResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(outboxUsecase.CycleResult), args.Error(1)
}

type mockEventFinder struct {
	mock.Mock
}

func (m *mockEventFinder) events(args mock.Arguments) ([]*outboxDomain.OutboxEvent, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outboxDomain.OutboxEvent), args.Error(1)
}

func (m *mockEventFinder) FindPending(ctx context.Context, limit int) ([]*outboxDomain.OutboxEvent, error) {
	return m.events(m.Called(ctx, limit))
}

func (m *mockEventFinder) FindRetryable(
	ctx context.Context,
	maxRetries int,
	notBefore time.Time,
	limit int,
) ([]*outboxDomain.OutboxEvent, error) {
	return m.events(m.Called(ctx, maxRetries, notBefore, limit))
}

func (m *mockEventFinder) FindByAggregate(
	ctx context.Context,
	aggregateType, aggregateID string,
) ([]*outboxDomain.OutboxEvent, error) {
	return m.events(m.Called(ctx, aggregateType, aggregateID))
}

func (m *mockEventFinder) FindByEventType(
	ctx context.Context,
	eventType string,
	limit int,
) ([]*outboxDomain.OutboxEvent, error) {
	return m.events(m.Called(ctx, eventType, limit))
}

type mockCleaner struct {
	mock.Mock
}

func (m *mockCleaner) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	args := m.Called(ctx, retention)
	return args.Get(0).(int64), args.Error(1)
}

type mockRecoverer struct {
	mock.Mock
}

func (m *mockRecoverer) ResumeStale(ctx context.Context) (sagaUsecase.RecoveryResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(sagaUsecase.RecoveryResult), args.Error(1)
}

func (m *mockRecoverer) Cleanup(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRecoverer) Statistics(ctx context.Context) (map[sagaDomain.SagaStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[sagaDomain.SagaStatus]int64), args.Error(1)
}

type mockOutboxCounter struct {
	mock.Mock
}

func (m *mockOutboxCounter) CountByStatus(ctx context.Context) (map[outboxDomain.OutboxEventStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[outboxDomain.OutboxEventStatus]int64), args.Error(1)
}
