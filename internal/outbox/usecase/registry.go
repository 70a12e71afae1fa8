package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/allisson/orderflow/internal/outbox/domain"
)

// HandlerRegistry routes events to the handler registered for their event type.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]Handler)}
}

// Register binds handler to eventType. Empty or padded types, nil handlers and
// duplicates are rejected: Handle matches the stored event type byte for byte.
func (r *HandlerRegistry) Register(eventType string, handler Handler) error {
	if eventType == "" || strings.TrimSpace(eventType) != eventType || handler == nil {
		return domain.ErrInvalidHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[eventType]; exists {
		return domain.ErrHandlerAlreadyRegistered
	}
	r.handlers[eventType] = handler
	return nil
}

// Handle dispatches event to its handler or returns *domain.UnknownEventTypeError.
func (r *HandlerRegistry) Handle(ctx context.Context, event *domain.OutboxEvent) error {
	r.mu.RLock()
	handler, ok := r.handlers[event.EventType]
	r.mu.RUnlock()

	if !ok {
		return &domain.UnknownEventTypeError{EventType: event.EventType}
	}
	return handler.Handle(ctx, event)
}

// EventTypes lists the registered event types in sorted order.
func (r *HandlerRegistry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for eventType := range r.handlers {
		types = append(types, eventType)
	}
	sort.Strings(types)
	return types
}
