package domain

import (
	apperrors "github.com/allisson/orderflow/internal/errors"
)

// Order-specific error definitions.
var (
	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = apperrors.Wrap(apperrors.ErrNotFound, "order not found")

	// ErrInvalidOrderStatus indicates an unknown order status.
	ErrInvalidOrderStatus = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid order status")

	// ErrSimulatedFailure is returned when a caller asks for a failure to demonstrate rollback.
	ErrSimulatedFailure = apperrors.New("simulated database failure")
)
