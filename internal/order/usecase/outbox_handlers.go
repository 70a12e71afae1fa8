package usecase

import (
	"context"

	"github.com/allisson/orderflow/internal/notification"
	orderDomain "github.com/allisson/orderflow/internal/order/domain"
	outboxDomain "github.com/allisson/orderflow/internal/outbox/domain"
	outboxUsecase "github.com/allisson/orderflow/internal/outbox/usecase"
)

// HandlerRegistrar binds outbox event types to handlers.
type HandlerRegistrar interface {
	Register(eventType string, handler outboxUsecase.Handler) error
}

// RegisterOutboxHandlers forwards order events from the outbox to the publisher.
func RegisterOutboxHandlers(registrar HandlerRegistrar, publisher notification.Publisher) error {
	routes := map[string]string{
		orderDomain.EventTypeOrderConfirmed: orderDomain.RoutingKeyOrderConfirmed,
		orderDomain.EventTypeOrderCancelled: orderDomain.RoutingKeyOrderCancelled,
	}
	for eventType, routingKey := range routes {
		if err := registrar.Register(eventType, publishHandler(publisher, routingKey)); err != nil {
			return err
		}
	}
	return nil
}

func publishHandler(publisher notification.Publisher, routingKey string) outboxUsecase.Handler {
	return outboxUsecase.HandlerFunc(func(ctx context.Context, event *outboxDomain.OutboxEvent) error {
		return publisher.Publish(ctx, notification.Message{
			Exchange:   orderDomain.Exchange,
			RoutingKey: routingKey,
			Key:        event.AggregateID,
			Body:       []byte(event.Payload),
			Headers: map[string]string{
				"content_type": "application/json",
				"event_id":     event.ID.String(),
				"event_type":   event.EventType,
			},
		})
	})
}
