package domain

import (
	"fmt"

	apperrors "github.com/allisson/orderflow/internal/errors"
)

// Saga-specific error definitions.
var (
	// ErrSagaNotFound indicates the saga does not exist.
	ErrSagaNotFound = apperrors.Wrap(apperrors.ErrNotFound, "saga not found")

	// ErrSagaConflict indicates the saga was modified by another worker.
	ErrSagaConflict = apperrors.Wrap(apperrors.ErrConflict, "saga was modified concurrently")

	// ErrSagaLocked indicates another worker is driving the saga.
	ErrSagaLocked = apperrors.Wrap(apperrors.ErrLocked, "saga is being processed by another worker")

	// ErrStepDefinitionMismatch indicates the steps given do not match the stored saga.
	ErrStepDefinitionMismatch = apperrors.Wrap(apperrors.ErrInvalidInput, "saga steps do not match the stored definition")

	// ErrInvalidSagaDefinition indicates an empty step list or duplicate step names.
	ErrInvalidSagaDefinition = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid saga definition")

	// ErrUnknownSagaType indicates no step definition is registered for a saga type.
	ErrUnknownSagaType = apperrors.Wrap(apperrors.ErrNotFound, "unknown saga type")
)

// StepExecutionError reports a failed forward action.
type StepExecutionError struct {
	Step string
	Err  error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// CompensationError reports a failed compensating action.
type CompensationError struct {
	Step string
	Err  error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation of step %s failed: %v", e.Step, e.Err)
}

func (e *CompensationError) Unwrap() error { return e.Err }

// MissingKeyError reports a saga data key that a step required but was not set.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("saga data key %q is not set", e.Key)
}

func (e *MissingKeyError) Unwrap() error { return apperrors.ErrInvalidInput }
