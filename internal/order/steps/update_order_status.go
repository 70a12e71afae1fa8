package steps

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/allisson/orderflow/internal/errors"
	orderDomain "github.com/allisson/orderflow/internal/order/domain"
	sagaDomain "github.com/allisson/orderflow/internal/saga/domain"
)

// ErrUpdateFailure is the failure UPDATE_ORDER_STATUS reports when shouldFailUpdate is set.
var ErrUpdateFailure = errors.New("simulated order status update failure")

// UpdateOrderStatusStep confirms the order and remembers the status it replaced.
type UpdateOrderStatusStep struct {
	orders OrderStore
	now    func() time.Time
}

// NewUpdateOrderStatusStep creates an UpdateOrderStatusStep.
func NewUpdateOrderStatusStep(orders OrderStore) *UpdateOrderStatusStep {
	return &UpdateOrderStatusStep{orders: orders, now: utcNow}
}

// Name returns UPDATE_ORDER_STATUS.
func (s *UpdateOrderStatusStep) Name() string { return UpdateOrderStatusStepName }

// Execute sets the order CONFIRMED and records originalOrderStatus.
func (s *UpdateOrderStatusStep) Execute(ctx context.Context, data *sagaDomain.Data) (*sagaDomain.Data, error) {
	orderID, err := OrderIDKey.Get(data)
	if err != nil {
		return nil, err
	}
	if ShouldFailUpdateKey.GetOr(data, false) {
		return nil, ErrUpdateFailure
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	original := order.Status

	order.Confirm(s.now())
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	out := sagaDomain.NewData()
	if err := OriginalOrderStatusKey.Set(out, original); err != nil {
		return nil, err
	}
	return out, nil
}

// Compensate restores originalOrderStatus, or cancels the order when it is unknown.
// A missing order needs no compensation.
func (s *UpdateOrderStatusStep) Compensate(ctx context.Context, data *sagaDomain.Data) error {
	orderID, ok, err := OrderIDKey.Lookup(data)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if apperrors.Is(err, orderDomain.ErrOrderNotFound) {
			return nil
		}
		return err
	}

	status := OriginalOrderStatusKey.GetOr(data, orderDomain.OrderStatusCancelled)
	if err := order.Restore(status, s.now()); err != nil {
		return err
	}
	return s.orders.Update(ctx, order)
}
