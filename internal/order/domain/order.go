// Package domain defines the order aggregate and the events it emits.
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"

	customValidation "github.com/allisson/orderflow/internal/validation"
)

// OrderStatus represents the lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// AllOrderStatuses lists every order status.
var AllOrderStatuses = []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusCancelled}

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	return slices.Contains(AllOrderStatuses, s)
}

// Order represents a customer order. Amount is stored with two decimal places.
type Order struct {
	ID           uuid.UUID
	CustomerName string
	ProductName  string
	Amount       decimal.Decimal
	Status       OrderStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewOrder validates the input and returns a PENDING order.
func NewOrder(customerName, productName string, amount decimal.Decimal, now time.Time) (*Order, error) {
	order := &Order{
		ID:           uuid.Must(uuid.NewV7()),
		CustomerName: customerName,
		ProductName:  productName,
		Amount:       amount,
		Status:       OrderStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}

// Validate checks the order fields.
func (o *Order) Validate() error {
	err := validation.ValidateStruct(o,
		validation.Field(&o.CustomerName,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&o.ProductName,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&o.Amount,
			customValidation.PositiveDecimal,
			customValidation.MaxDecimalPlaces(2),
		),
	)
	return customValidation.WrapValidationError(err)
}

// Confirm marks the order CONFIRMED.
func (o *Order) Confirm(now time.Time) {
	o.setStatus(OrderStatusConfirmed, now)
}

// Cancel marks the order CANCELLED.
func (o *Order) Cancel(now time.Time) {
	o.setStatus(OrderStatusCancelled, now)
}

// Restore puts the order back into a previous status.
func (o *Order) Restore(status OrderStatus, now time.Time) error {
	if !status.IsValid() {
		return ErrInvalidOrderStatus
	}
	o.setStatus(status, now)
	return nil
}

func (o *Order) setStatus(status OrderStatus, now time.Time) {
	o.Status = status
	o.UpdatedAt = now
}
