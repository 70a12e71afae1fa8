package steps

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/orderflow/internal/errors"
	orderDomain "github.com/allisson/orderflow/internal/order/domain"
	sagaDomain "github.com/allisson/orderflow/internal/saga/domain"
)

// OrderStore is the order persistence used by the steps.
type OrderStore interface {
	Create(ctx context.Context, order *orderDomain.Order) error
	Get(ctx context.Context, id uuid.UUID) (*orderDomain.Order, error)
	Update(ctx context.Context, order *orderDomain.Order) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreateOrderStep saves a PENDING order and records its id. Compensation deletes it.
type CreateOrderStep struct {
	orders OrderStore
	now    func() time.Time
}

// NewCreateOrderStep creates a CreateOrderStep.
func NewCreateOrderStep(orders OrderStore) *CreateOrderStep {
	return &CreateOrderStep{orders: orders, now: utcNow}
}

// Name returns CREATE_ORDER.
func (s *CreateOrderStep) Name() string { return CreateOrderStepName }

// Execute creates the order from customerName, productName and amount.
func (s *CreateOrderStep) Execute(ctx context.Context, data *sagaDomain.Data) (*sagaDomain.Data, error) {
	customerName, err := CustomerNameKey.Get(data)
	if err != nil {
		return nil, err
	}
	productName, err := ProductNameKey.Get(data)
	if err != nil {
		return nil, err
	}
	amount, err := AmountKey.Get(data)
	if err != nil {
		return nil, err
	}

	order, err := orderDomain.NewOrder(customerName, productName, amount, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	out := sagaDomain.NewData()
	if err := OrderIDKey.Set(out, order.ID); err != nil {
		return nil, err
	}
	return out, nil
}

// Compensate deletes the order. A missing id or an already deleted order is not an error.
func (s *CreateOrderStep) Compensate(ctx context.Context, data *sagaDomain.Data) error {
	orderID, ok, err := OrderIDKey.Lookup(data)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := s.orders.Delete(ctx, orderID); err != nil && !apperrors.Is(err, orderDomain.ErrOrderNotFound) {
		return err
	}
	return nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}
