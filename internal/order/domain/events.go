package domain

import "github.com/google/uuid"

// AggregateType is the outbox aggregate type of orders.
const AggregateType = "Order"

// Outbox event types emitted by orders.
const (
	EventTypeOrderConfirmed = "ORDER_CONFIRMED"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
)

// Notification routing for order events.
const (
	Exchange                 = "order.exchange"
	RoutingKeyOrderConfirmed = "order.confirmed"
	RoutingKeyOrderCancelled = "order.cancelled"
)

// OrderConfirmedPayload is the ORDER_CONFIRMED event body.
type OrderConfirmedPayload struct {
	OrderID      uuid.UUID `json:"orderId"`
	CustomerName string    `json:"customerName"`
	Message      string    `json:"message"`
}

// OrderCancelledPayload is the ORDER_CANCELLED event body.
type OrderCancelledPayload struct {
	OrderID      uuid.UUID `json:"orderId"`
	CustomerName string    `json:"customerName"`
	Reason       string    `json:"reason"`
}
