package usecase

import (
	"context"
	"database/sql/driver"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/orderflow/internal/database"
	apperrors "github.com/allisson/orderflow/internal/errors"
	orderDomain "github.com/allisson/orderflow/internal/order/domain"
	orderRepository "github.com/allisson/orderflow/internal/order/repository"
	outboxRepository "github.com/allisson/orderflow/internal/outbox/repository"
	outboxUsecase "github.com/allisson/orderflow/internal/outbox/usecase"
)

var testTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// payloadContains matches a JSON payload argument containing every fragment.
type payloadContains []string

func (p payloadContains) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, fragment := range p {
		if !strings.Contains(s, fragment) {
			return false
		}
	}
	return true
}

func newSQLOutboxOrderUseCase(t *testing.T) (OutboxOrderUseCase, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	useCase := NewOutboxOrderUseCase(
		database.NewTxManager(db),
		orderRepository.NewPostgreSQLOrderRepository(db),
		outboxUsecase.NewStore(outboxRepository.NewPostgreSQLOutboxEventRepository(db)),
		discardLogger(),
	)
	return useCase, mock
}

func expectOrderWrites(mock sqlmock.Sqlmock, customer, product, amount string) {
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), customer, product, amount, orderDomain.OrderStatusPending,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(sqlmock.AnyArg(), "Order", sqlmock.AnyArg(), "ORDER_CONFIRMED",
			payloadContains{`"customerName":"` + customer + `"`, `"message":"order created, awaiting confirmation"`},
			"PENDING", 0, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders").
		WithArgs(customer, product, amount, orderDomain.OrderStatusConfirmed, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestOutboxOrderUseCase_CreateOrderWithOutbox(t *testing.T) {
	ctx := context.Background()

	t.Run("commits order and event together", func(t *testing.T) {
		useCase, mock := newSQLOutboxOrderUseCase(t)

		mock.ExpectBegin()
		expectOrderWrites(mock, "Jane", "Keyboard", "199.9")
		mock.ExpectCommit()

		order, err := useCase.CreateOrderWithOutbox(ctx, "Jane", "Keyboard", decimal.RequireFromString("199.90"), false)
		require.NoError(t, err)
		assert.Equal(t, orderDomain.OrderStatusConfirmed, order.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("simulated failure rolls everything back", func(t *testing.T) {
		useCase, mock := newSQLOutboxOrderUseCase(t)

		mock.ExpectBegin()
		expectOrderWrites(mock, "Jane", "Keyboard", "10")
		mock.ExpectRollback()

		order, err := useCase.CreateOrderWithOutbox(ctx, "Jane", "Keyboard", decimal.NewFromInt(10), true)
		assert.Nil(t, order)
		assert.ErrorIs(t, err, orderDomain.ErrSimulatedFailure)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid input never writes", func(t *testing.T) {
		useCase, mock := newSQLOutboxOrderUseCase(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		_, err := useCase.CreateOrderWithOutbox(ctx, "Jane", "Keyboard", decimal.Zero, false)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxOrderUseCase_CancelOrderWithOutbox(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.Must(uuid.NewV7())
	columns := []string{"id", "customer_name", "product_name", "amount", "status", "created_at", "updated_at"}

	t.Run("cancels and emits event", func(t *testing.T) {
		useCase, mock := newSQLOutboxOrderUseCase(t)

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(orderID).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(orderID.String(), "Jane", "Keyboard", "10.00", "CONFIRMED", testTime, testTime))
		mock.ExpectExec("UPDATE orders").
			WithArgs("Jane", "Keyboard", "10", orderDomain.OrderStatusCancelled, sqlmock.AnyArg(), orderID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO outbox_events").
			WithArgs(sqlmock.AnyArg(), "Order", orderID.String(), "ORDER_CANCELLED",
				payloadContains{`"reason":"customer request"`}, "PENDING", 0, nil, nil,
				sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		order, err := useCase.CancelOrderWithOutbox(ctx, orderID, "customer request")
		require.NoError(t, err)
		assert.Equal(t, orderDomain.OrderStatusCancelled, order.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing order", func(t *testing.T) {
		useCase, mock := newSQLOutboxOrderUseCase(t)

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs(orderID).WillReturnRows(sqlmock.NewRows(columns))
		mock.ExpectRollback()

		_, err := useCase.CancelOrderWithOutbox(ctx, orderID, "customer request")
		assert.ErrorIs(t, err, orderDomain.ErrOrderNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxOrderUseCase_CreateMultipleOrdersWithOutbox(t *testing.T) {
	ctx := context.Background()

	t.Run("creates every order in one transaction", func(t *testing.T) {
		useCase, mock := newSQLOutboxOrderUseCase(t)

		mock.ExpectBegin()
		expectOrderWrites(mock, "Jane", "Product-1", "100")
		expectOrderWrites(mock, "Jane", "Product-2", "200")
		expectOrderWrites(mock, "Jane", "Product-3", "300")
		mock.ExpectCommit()

		orders, err := useCase.CreateMultipleOrdersWithOutbox(ctx, 3, "Jane", false)
		require.NoError(t, err)
		require.Len(t, orders, 3)
		assert.True(t, orders[2].Amount.Equal(decimal.NewFromInt(300)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure of the last order rolls back the batch", func(t *testing.T) {
		useCase, mock := newSQLOutboxOrderUseCase(t)

		mock.ExpectBegin()
		expectOrderWrites(mock, "Jane", "Product-1", "100")
		expectOrderWrites(mock, "Jane", "Product-2", "200")
		mock.ExpectRollback()

		orders, err := useCase.CreateMultipleOrdersWithOutbox(ctx, 2, "Jane", true)
		assert.Nil(t, orders)
		assert.ErrorIs(t, err, orderDomain.ErrSimulatedFailure)
		assert.Contains(t, err.Error(), "order 2 of 2")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid count", func(t *testing.T) {
		useCase, mock := newSQLOutboxOrderUseCase(t)

		_, err := useCase.CreateMultipleOrdersWithOutbox(ctx, 0, "Jane", false)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
