// Package domain defines the core outbox domain entities and types.
//
// An OutboxEvent is written in the same transaction as the business change it describes
// and is delivered later by the dispatcher. Its lifecycle is:
//
//	PENDING -> PROCESSING -> PROCESSED
//	                      -> FAILED -> PROCESSING (retry) -> ...
//	                      -> DEAD_LETTER (retry count reached the maximum)
//
// PROCESSED and DEAD_LETTER are terminal.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEventStatus represents the status of an outbox event.
type OutboxEventStatus string

const (
	OutboxEventStatusPending    OutboxEventStatus = "PENDING"
	OutboxEventStatusProcessing OutboxEventStatus = "PROCESSING"
	OutboxEventStatusProcessed  OutboxEventStatus = "PROCESSED"
	OutboxEventStatusFailed     OutboxEventStatus = "FAILED"
	OutboxEventStatusDeadLetter OutboxEventStatus = "DEAD_LETTER"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []OutboxEventStatus{
	OutboxEventStatusPending,
	OutboxEventStatusProcessing,
	OutboxEventStatusProcessed,
	OutboxEventStatusFailed,
	OutboxEventStatusDeadLetter,
}

// IsValid reports whether s is a known status.
func (s OutboxEventStatus) IsValid() bool {
	for _, status := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s OutboxEventStatus) IsTerminal() bool {
	return s == OutboxEventStatusProcessed || s == OutboxEventStatusDeadLetter
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle step.
// PROCESSING may fall back to PENDING or FAILED when a claimed event is released unstarted.
func (s OutboxEventStatus) CanTransitionTo(next OutboxEventStatus) bool {
	switch s {
	case OutboxEventStatusPending, OutboxEventStatusFailed:
		return next == OutboxEventStatusProcessing
	case OutboxEventStatusProcessing:
		switch next {
		case OutboxEventStatusProcessed, OutboxEventStatusFailed, OutboxEventStatusDeadLetter,
			OutboxEventStatusPending, OutboxEventStatusProcessing:
			return true
		}
	}
	return false
}

// OutboxEvent represents an event in the transactional outbox pattern.
type OutboxEvent struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	// Payload is the JSON encoding of the event data; the store never interprets it.
	Payload      string
	Status       OutboxEventStatus
	RetryCount   int
	ErrorMessage *string
	ProcessedAt  *time.Time
	CreatedAt    time.Time
	// UpdatedAt is the time of the last state change; for FAILED events it is the last attempt.
	UpdatedAt time.Time
}

// MarkProcessing claims the event for an attempt.
func (e *OutboxEvent) MarkProcessing(now time.Time) error {
	if !e.Status.CanTransitionTo(OutboxEventStatusProcessing) {
		return &InvalidTransitionError{EventID: e.ID, From: e.Status, To: OutboxEventStatusProcessing}
	}
	e.Status = OutboxEventStatusProcessing
	e.UpdatedAt = now
	return nil
}

// MarkProcessed records a successful delivery.
func (e *OutboxEvent) MarkProcessed(now time.Time) error {
	if !e.Status.CanTransitionTo(OutboxEventStatusProcessed) {
		return &InvalidTransitionError{EventID: e.ID, From: e.Status, To: OutboxEventStatusProcessed}
	}
	e.Status = OutboxEventStatusProcessed
	e.ProcessedAt = &now
	e.ErrorMessage = nil
	e.UpdatedAt = now
	return nil
}

// MarkFailed records a failed attempt. The retry count grows by exactly one and the
// event is dead-lettered when it reaches maxRetries.
func (e *OutboxEvent) MarkFailed(cause error, maxRetries int, now time.Time) error {
	if e.Status != OutboxEventStatusProcessing {
		return &InvalidTransitionError{EventID: e.ID, From: e.Status, To: OutboxEventStatusFailed}
	}
	e.RetryCount++
	message := TruncateErrorMessage(cause.Error())
	e.ErrorMessage = &message
	e.UpdatedAt = now
	if e.RetryCount >= maxRetries {
		e.Status = OutboxEventStatusDeadLetter
		return nil
	}
	e.Status = OutboxEventStatusFailed
	return nil
}

// maxErrorMessageLength keeps error_message inside its column.
const maxErrorMessageLength = 1024

// TruncateErrorMessage shortens msg to the stored length.
func TruncateErrorMessage(msg string) string {
	if len(msg) <= maxErrorMessageLength {
		return msg
	}
	return msg[:maxErrorMessageLength-3] + "..."
}

// Release returns a claimed but never attempted event to the state it was claimed from.
func (e *OutboxEvent) Release(previous OutboxEventStatus, previousUpdatedAt time.Time) error {
	if e.Status != OutboxEventStatusProcessing || !e.Status.CanTransitionTo(previous) {
		return &InvalidTransitionError{EventID: e.ID, From: e.Status, To: previous}
	}
	e.Status = previous
	e.UpdatedAt = previousUpdatedAt
	return nil
}
