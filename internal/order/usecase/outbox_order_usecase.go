package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"

	"github.com/allisson/orderflow/internal/database"
	apperrors "github.com/allisson/orderflow/internal/errors"
	orderDomain "github.com/allisson/orderflow/internal/order/domain"
	customValidation "github.com/allisson/orderflow/internal/validation"
)

const confirmationMessage = "order created, awaiting confirmation"

// outboxOrderUseCase implements OutboxOrderUseCase.
type outboxOrderUseCase struct {
	txManager database.TxManager
	orderRepo OrderRepository
	events    EventCreator
	logger    *slog.Logger
	now       func() time.Time
}

// NewOutboxOrderUseCase creates a new OutboxOrderUseCase.
func NewOutboxOrderUseCase(
	txManager database.TxManager,
	orderRepo OrderRepository,
	events EventCreator,
	logger *slog.Logger,
) OutboxOrderUseCase {
	return &outboxOrderUseCase{
		txManager: txManager,
		orderRepo: orderRepo,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrderWithOutbox stores a PENDING order, appends ORDER_CONFIRMED to the outbox and
// confirms the order in one transaction. simulateFailure aborts after all writes, so nothing
// is persisted.
func (u *outboxOrderUseCase) CreateOrderWithOutbox(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
	simulateFailure bool,
) (*orderDomain.Order, error) {
	var order *orderDomain.Order
	err := u.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = u.createOrder(ctx, customerName, productName, amount, simulateFailure)
		return err
	})
	if err != nil {
		u.logger.Error("order creation rolled back",
			slog.String("customer_name", customerName),
			slog.Bool("simulated", simulateFailure),
			slog.Any("error", err),
		)
		return nil, err
	}

	u.logger.Info("order created",
		slog.String("order_id", order.ID.String()),
		slog.String("status", string(order.Status)),
	)
	return order, nil
}

func (u *outboxOrderUseCase) createOrder(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
	simulateFailure bool,
) (*orderDomain.Order, error) {
	order, err := orderDomain.NewOrder(customerName, productName, amount, u.now())
	if err != nil {
		return nil, err
	}
	if err := u.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	payload := orderDomain.OrderConfirmedPayload{
		OrderID:      order.ID,
		CustomerName: order.CustomerName,
		Message:      confirmationMessage,
	}
	if _, err := u.events.CreateEvent(ctx, orderDomain.AggregateType, order.ID.String(),
		orderDomain.EventTypeOrderConfirmed, payload); err != nil {
		return nil, err
	}

	order.Confirm(u.now())
	if err := u.orderRepo.Update(ctx, order); err != nil {
		return nil, err
	}

	if simulateFailure {
		return nil, orderDomain.ErrSimulatedFailure
	}
	return order, nil
}

// CancelOrderWithOutbox cancels an order and appends ORDER_CANCELLED in one transaction.
func (u *outboxOrderUseCase) CancelOrderWithOutbox(
	ctx context.Context,
	orderID uuid.UUID,
	reason string,
) (*orderDomain.Order, error) {
	if err := validation.Validate(reason, validation.Length(0, 500)); err != nil {
		return nil, customValidation.WrapValidationError(err)
	}

	var order *orderDomain.Order
	err := u.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = u.orderRepo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		order.Cancel(u.now())
		if err := u.orderRepo.Update(ctx, order); err != nil {
			return err
		}

		payload := orderDomain.OrderCancelledPayload{
			OrderID:      order.ID,
			CustomerName: order.CustomerName,
			Reason:       reason,
		}
		_, err = u.events.CreateEvent(ctx, orderDomain.AggregateType, order.ID.String(),
			orderDomain.EventTypeOrderCancelled, payload)
		return err
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info("order cancelled", slog.String("order_id", order.ID.String()), slog.String("reason", reason))
	return order, nil
}

// CreateMultipleOrdersWithOutbox creates count orders for "Product-1".."Product-count" with
// amounts 100.00 * i in one transaction. With simulateFailure the last order fails and the
// whole batch rolls back.
func (u *outboxOrderUseCase) CreateMultipleOrdersWithOutbox(
	ctx context.Context,
	count int,
	customerName string,
	simulateFailure bool,
) ([]*orderDomain.Order, error) {
	if err := validation.Validate(count, validation.Required, validation.Min(1), validation.Max(1000)); err != nil {
		return nil, customValidation.WrapValidationError(err)
	}

	unit := decimal.RequireFromString("100.00")
	orders := make([]*orderDomain.Order, 0, count)
	err := u.txManager.WithTx(ctx, func(ctx context.Context) error {
		for i := 1; i <= count; i++ {
			productName := fmt.Sprintf("Product-%d", i)
			amount := unit.Mul(decimal.NewFromInt(int64(i)))
			shouldFail := simulateFailure && i == count

			order, err := u.createOrder(ctx, customerName, productName, amount, shouldFail)
			if err != nil {
				return apperrors.Wrapf(err, "order %d of %d", i, count)
			}
			orders = append(orders, order)
		}
		return nil
	})
	if err != nil {
		u.logger.Error("batch order creation rolled back",
			slog.Int("count", count),
			slog.Any("error", err),
		)
		return nil, err
	}

	u.logger.Info("batch orders created", slog.Int("count", len(orders)))
	return orders, nil
}
