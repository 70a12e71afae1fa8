package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	orderDomain "github.com/allisson/orderflow/internal/order/domain"
	sagaDomain "github.com/allisson/orderflow/internal/saga/domain"
)

func expectRecorded(m *mockBusinessMetrics, ctx context.Context, operation, status string) {
	m.On("RecordOperation", ctx, "orders", operation, status).Return().Once()
	m.On("RecordDuration", ctx, "orders", operation, mock.AnythingOfType("time.Duration"), status).
		Return().
		Once()
}

func TestOutboxOrderUseCaseWithMetrics(t *testing.T) {
	mockNext := &mockOutboxOrderUseCase{}
	mockMetrics := &mockBusinessMetrics{}
	uc := NewOutboxOrderUseCaseWithMetrics(mockNext, mockMetrics)

	ctx := context.Background()
	amount := decimal.NewFromInt(10)

	t.Run("CreateOrderWithOutbox success", func(t *testing.T) {
		order := &orderDomain.Order{ID: uuid.Must(uuid.NewV7())}

		mockNext.On("CreateOrderWithOutbox", ctx, "Jane", "Pen", amount, false).Return(order, nil).Once()
		expectRecorded(mockMetrics, ctx, "order_create", "success")

		res, err := uc.CreateOrderWithOutbox(ctx, "Jane", "Pen", amount, false)
		assert.NoError(t, err)
		assert.Equal(t, order, res)
		mockNext.AssertExpectations(t)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("CreateOrderWithOutbox error", func(t *testing.T) {
		mockNext.On("CreateOrderWithOutbox", ctx, "Jane", "Pen", amount, true).
			Return(nil, orderDomain.ErrSimulatedFailure).
			Once()
		expectRecorded(mockMetrics, ctx, "order_create", "error")

		res, err := uc.CreateOrderWithOutbox(ctx, "Jane", "Pen", amount, true)
		assert.ErrorIs(t, err, orderDomain.ErrSimulatedFailure)
		assert.Nil(t, res)
		mockNext.AssertExpectations(t)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("CancelOrderWithOutbox error", func(t *testing.T) {
		id := uuid.Must(uuid.NewV7())

		mockNext.On("CancelOrderWithOutbox", ctx, id, "late").Return(nil, orderDomain.ErrOrderNotFound).Once()
		expectRecorded(mockMetrics, ctx, "order_cancel", "error")

		_, err := uc.CancelOrderWithOutbox(ctx, id, "late")
		assert.ErrorIs(t, err, orderDomain.ErrOrderNotFound)
		mockNext.AssertExpectations(t)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("CreateMultipleOrdersWithOutbox success", func(t *testing.T) {
		orders := []*orderDomain.Order{{ID: uuid.Must(uuid.NewV7())}}

		mockNext.On("CreateMultipleOrdersWithOutbox", ctx, 1, "Jane", false).Return(orders, nil).Once()
		expectRecorded(mockMetrics, ctx, "order_create_batch", "success")

		res, err := uc.CreateMultipleOrdersWithOutbox(ctx, 1, "Jane", false)
		assert.NoError(t, err)
		assert.Equal(t, orders, res)
		mockNext.AssertExpectations(t)
		mockMetrics.AssertExpectations(t)
	})
}

func TestSagaOrderUseCaseWithMetrics(t *testing.T) {
	mockNext := &mockSagaOrderUseCase{}
	mockMetrics := &mockBusinessMetrics{}
	uc := NewSagaOrderUseCaseWithMetrics(mockNext, mockMetrics)

	ctx := context.Background()
	amount := decimal.NewFromInt(10)
	saga := &sagaDomain.SagaTransaction{ID: uuid.Must(uuid.NewV7())}

	t.Run("CreateOrder success", func(t *testing.T) {
		mockNext.On("CreateOrder", ctx, "Jane", "Pen", amount).Return(saga, nil).Once()
		expectRecorded(mockMetrics, ctx, "saga_order_create", "success")

		res, err := uc.CreateOrder(ctx, "Jane", "Pen", amount)
		assert.NoError(t, err)
		assert.Equal(t, saga, res)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("CreateOrderWithMessageFailure success", func(t *testing.T) {
		mockNext.On("CreateOrderWithMessageFailure", ctx, "Jane", "Pen", amount).Return(saga, nil).Once()
		expectRecorded(mockMetrics, ctx, "saga_order_create_msg_fail", "success")

		_, err := uc.CreateOrderWithMessageFailure(ctx, "Jane", "Pen", amount)
		assert.NoError(t, err)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("CreateOrderWithUpdateFailure success", func(t *testing.T) {
		mockNext.On("CreateOrderWithUpdateFailure", ctx, "Jane", "Pen", amount).Return(saga, nil).Once()
		expectRecorded(mockMetrics, ctx, "saga_order_create_update_fail", "success")

		_, err := uc.CreateOrderWithUpdateFailure(ctx, "Jane", "Pen", amount)
		assert.NoError(t, err)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("ResumeSaga error", func(t *testing.T) {
		expectedErr := errors.New("locked")
		mockNext.On("ResumeSaga", ctx, saga.ID).Return(nil, expectedErr).Once()
		expectRecorded(mockMetrics, ctx, "saga_resume", "error")

		res, err := uc.ResumeSaga(ctx, saga.ID)
		assert.Equal(t, expectedErr, err)
		assert.Nil(t, res)
		mockNext.AssertExpectations(t)
		mockMetrics.AssertExpectations(t)
	})
}
