package domain

import (
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/allisson/orderflow/internal/errors"
)

// Outbox-specific error definitions.
var (
	// ErrOutboxEventNotFound indicates the event does not exist.
	ErrOutboxEventNotFound = apperrors.Wrap(apperrors.ErrNotFound, "outbox event not found")

	// ErrHandlerAlreadyRegistered indicates a second handler for the same event type.
	ErrHandlerAlreadyRegistered = apperrors.Wrap(apperrors.ErrConflict, "handler already registered")

	// ErrInvalidHandler indicates an empty event type or a nil handler.
	ErrInvalidHandler = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid event handler")
)

// SerializationError reports event data that could not be encoded. Returning it from
// inside a transaction aborts the whole business write.
type SerializationError struct {
	EventType string
	Err       error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("failed to serialize %s event payload: %v", e.EventType, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// UnknownEventTypeError reports an event whose type has no registered handler.
type UnknownEventTypeError struct {
	EventType string
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("no handler registered for event type %q", e.EventType)
}

// HandlerError wraps a failed delivery attempt.
type HandlerError struct {
	EventID   uuid.UUID
	EventType string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for %s failed: %v", e.EventType, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// InvalidTransitionError reports an illegal status change.
type InvalidTransitionError struct {
	EventID uuid.UUID
	From    OutboxEventStatus
	To      OutboxEventStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("outbox event %s cannot move from %s to %s", e.EventID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return apperrors.ErrConflict }
