// Package domain defines saga transactions, the step contract and the shared data bag.
//
// A saga runs its steps in order. When a step fails, every step that already succeeded is
// compensated in reverse order:
//
//	STARTED -> EXECUTING -> COMPLETED
//	           EXECUTING -> COMPENSATING -> COMPENSATED
//	                        COMPENSATING -> FAILED (a compensation failed)
//
// COMPLETED, COMPENSATED and FAILED are terminal.
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// SagaStatus represents the status of a saga transaction.
type SagaStatus string

const (
	SagaStatusStarted      SagaStatus = "STARTED"
	SagaStatusExecuting    SagaStatus = "EXECUTING"
	SagaStatusCompleted    SagaStatus = "COMPLETED"
	SagaStatusCompensating SagaStatus = "COMPENSATING"
	SagaStatusCompensated  SagaStatus = "COMPENSATED"
	SagaStatusFailed       SagaStatus = "FAILED"
)

// AllSagaStatuses lists every status in lifecycle order.
var AllSagaStatuses = []SagaStatus{
	SagaStatusStarted,
	SagaStatusExecuting,
	SagaStatusCompleted,
	SagaStatusCompensating,
	SagaStatusCompensated,
	SagaStatusFailed,
}

// ResumableStatuses are the statuses a recovery pass picks up.
var ResumableStatuses = []SagaStatus{
	SagaStatusStarted,
	SagaStatusExecuting,
	SagaStatusCompensating,
}

// IsValid reports whether s is a known status.
func (s SagaStatus) IsValid() bool {
	return slices.Contains(AllSagaStatuses, s)
}

// IsTerminal reports whether the saga has finished.
func (s SagaStatus) IsTerminal() bool {
	return s == SagaStatusCompleted || s == SagaStatusCompensated || s == SagaStatusFailed
}

// SagaTransaction is the persisted state of one saga run.
type SagaTransaction struct {
	ID         uuid.UUID
	SagaType   string
	BusinessID string
	Status     SagaStatus
	// CurrentStep is the index of the step being executed or last attempted.
	CurrentStep int
	// StepNames are the names of the saga definition at start, in execution order.
	StepNames        []string
	ExecutedSteps    []string
	CompensatedSteps []string
	Data             *Data
	ErrorMessage     *string
	// Version guards concurrent updates; every successful update increments it.
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// NewSagaTransaction creates a STARTED saga for the given definition.
func NewSagaTransaction(sagaType, businessID string, stepNames []string, data *Data, now time.Time) *SagaTransaction {
	if data == nil {
		data = NewData()
	}
	return &SagaTransaction{
		ID:               uuid.Must(uuid.NewV7()),
		SagaType:         sagaType,
		BusinessID:       businessID,
		Status:           SagaStatusStarted,
		StepNames:        slices.Clone(stepNames),
		ExecutedSteps:    []string{},
		CompensatedSteps: []string{},
		Data:             data,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// IsCompensated reports whether the named step has already been compensated.
func (s *SagaTransaction) IsCompensated(name string) bool {
	return slices.Contains(s.CompensatedSteps, name)
}

// SetError records msg as the saga error, shortened to the stored length.
func (s *SagaTransaction) SetError(msg string) {
	msg = truncate(msg)
	s.ErrorMessage = &msg
}

// Finish moves the saga to a terminal status.
func (s *SagaTransaction) Finish(status SagaStatus, now time.Time) {
	s.Status = status
	s.UpdatedAt = now
	s.CompletedAt = &now
}

const maxErrorMessageLength = 2048

func truncate(msg string) string {
	if len(msg) <= maxErrorMessageLength {
		return msg
	}
	return msg[:maxErrorMessageLength-3] + "..."
}
