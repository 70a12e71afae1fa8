package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/orderflow/internal/outbox/domain"
)

// MockTxManager is a mock implementation of database.TxManager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

// MockOutboxEventRepository is a mock implementation of OutboxEventRepository
type MockOutboxEventRepository struct {
	mock.Mock
}

func (m *MockOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockOutboxEventRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockOutboxEventRepository) Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxEventRepository) FindPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	return eventsOrNil(args)
}

func (m *MockOutboxEventRepository) FindRetryable(
	ctx context.Context,
	maxRetries int,
	notBefore time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, maxRetries, notBefore, limit)
	return eventsOrNil(args)
}

func (m *MockOutboxEventRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	return eventsOrNil(args)
}

func (m *MockOutboxEventRepository) ClaimRetryable(
	ctx context.Context,
	maxRetries int,
	notBefore time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, maxRetries, notBefore, limit)
	return eventsOrNil(args)
}

func (m *MockOutboxEventRepository) ClaimStaleProcessing(
	ctx context.Context,
	staleBefore time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, staleBefore, limit)
	return eventsOrNil(args)
}

func (m *MockOutboxEventRepository) FindByAggregate(
	ctx context.Context,
	aggregateType, aggregateID string,
) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, aggregateType, aggregateID)
	return eventsOrNil(args)
}

func (m *MockOutboxEventRepository) FindByEventType(
	ctx context.Context,
	eventType string,
	limit int,
) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, eventType, limit)
	return eventsOrNil(args)
}

func (m *MockOutboxEventRepository) CountByStatus(
	ctx context.Context,
) (map[domain.OutboxEventStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.OutboxEventStatus]int64), args.Error(1)
}

func (m *MockOutboxEventRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func eventsOrNil(args mock.Arguments) ([]*domain.OutboxEvent, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxEvent), args.Error(1)
}
