package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/allisson/orderflow/internal/notification"
	orderDomain "github.com/allisson/orderflow/internal/order/domain"
	sagaDomain "github.com/allisson/orderflow/internal/saga/domain"
)

// ErrMessageFailure is the failure SEND_MESSAGE reports when shouldFailMessage is set.
var ErrMessageFailure = errors.New("simulated message publishing failure")

const compensationReason = "saga compensation"

type orderConfirmedMessage struct {
	OrderID      uuid.UUID       `json:"orderId"`
	CustomerName string          `json:"customerName"`
	ProductName  string          `json:"productName"`
	Amount       decimal.Decimal `json:"amount"`
	Action       string          `json:"action"`
	Timestamp    int64           `json:"timestamp"`
}

type orderCancelledMessage struct {
	OrderID           uuid.UUID `json:"orderId"`
	CustomerName      string    `json:"customerName"`
	Action            string    `json:"action"`
	Reason            string    `json:"reason"`
	OriginalMessageID string    `json:"originalMessageId"`
	Timestamp         int64     `json:"timestamp"`
}

// SendMessageStep publishes the order confirmation. Compensation publishes a cancellation
// that references the original message.
type SendMessageStep struct {
	publisher notification.Publisher
	now       func() time.Time
}

// NewSendMessageStep creates a SendMessageStep.
func NewSendMessageStep(publisher notification.Publisher) *SendMessageStep {
	return &SendMessageStep{publisher: publisher, now: utcNow}
}

// Name returns SEND_MESSAGE.
func (s *SendMessageStep) Name() string { return SendMessageStepName }

// Execute publishes ORDER_CONFIRMED to order.exchange and records messageId.
func (s *SendMessageStep) Execute(ctx context.Context, data *sagaDomain.Data) (*sagaDomain.Data, error) {
	if ShouldFailMessageKey.GetOr(data, false) {
		return nil, ErrMessageFailure
	}

	orderID, err := OrderIDKey.Get(data)
	if err != nil {
		return nil, err
	}
	now := s.now()
	msg := orderConfirmedMessage{
		OrderID:      orderID,
		CustomerName: CustomerNameKey.GetOr(data, ""),
		ProductName:  ProductNameKey.GetOr(data, ""),
		Amount:       AmountKey.GetOr(data, decimal.Zero),
		Action:       orderDomain.EventTypeOrderConfirmed,
		Timestamp:    now.UnixMilli(),
	}
	if err := s.publish(ctx, orderDomain.RoutingKeyOrderConfirmed, orderID, msg); err != nil {
		return nil, err
	}

	out := sagaDomain.NewData()
	if err := MessageIDKey.Set(out, fmt.Sprintf("msg_%s_%d", orderID, now.UnixMilli())); err != nil {
		return nil, err
	}
	return out, nil
}

// Compensate publishes ORDER_CANCELLED. Nothing is sent when no message was recorded.
func (s *SendMessageStep) Compensate(ctx context.Context, data *sagaDomain.Data) error {
	messageID, ok, err := MessageIDKey.Lookup(data)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	orderID := OrderIDKey.GetOr(data, uuid.Nil)
	msg := orderCancelledMessage{
		OrderID:           orderID,
		CustomerName:      CustomerNameKey.GetOr(data, ""),
		Action:            orderDomain.EventTypeOrderCancelled,
		Reason:            compensationReason,
		OriginalMessageID: messageID,
		Timestamp:         s.now().UnixMilli(),
	}
	return s.publish(ctx, orderDomain.RoutingKeyOrderCancelled, orderID, msg)
}

func (s *SendMessageStep) publish(ctx context.Context, routingKey string, orderID uuid.UUID, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, notification.Message{
		Exchange:   orderDomain.Exchange,
		RoutingKey: routingKey,
		Key:        orderID.String(),
		Body:       b,
		Headers:    map[string]string{"content_type": "application/json"},
	})
}
