package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/orderflow/internal/errors"
	orderUsecase "github.com/allisson/orderflow/internal/order/usecase"
	sagaDomain "github.com/allisson/orderflow/internal/saga/domain"
)

type sagaOutput struct {
	ID               uuid.UUID  `json:"id"`
	SagaType         string     `json:"saga_type"`
	BusinessID       string     `json:"business_id"`
	Status           string     `json:"status"`
	CurrentStep      int        `json:"current_step"`
	StepNames        []string   `json:"step_names"`
	ExecutedSteps    []string   `json:"executed_steps"`
	CompensatedSteps []string   `json:"compensated_steps"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	Version          int64      `json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

func newSagaOutput(saga *sagaDomain.SagaTransaction) sagaOutput {
	return sagaOutput{
		ID:               saga.ID,
		SagaType:         saga.SagaType,
		BusinessID:       saga.BusinessID,
		Status:           string(saga.Status),
		CurrentStep:      saga.CurrentStep,
		StepNames:        saga.StepNames,
		ExecutedSteps:    saga.ExecutedSteps,
		CompensatedSteps: saga.CompensatedSteps,
		ErrorMessage:     saga.ErrorMessage,
		Version:          saga.Version,
		CreatedAt:        saga.CreatedAt,
		UpdatedAt:        saga.UpdatedAt,
		CompletedAt:      saga.CompletedAt,
	}
}

func writeSaga(w io.Writer, saga *sagaDomain.SagaTransaction, format string) error {
	output := newSagaOutput(saga)
	if format == FormatJSON {
		return writeJSON(w, output)
	}

	_, _ = fmt.Fprintf(w, "Saga:        %s\n", output.ID)
	_, _ = fmt.Fprintf(w, "Type:        %s\n", output.SagaType)
	_, _ = fmt.Fprintf(w, "Business ID: %s\n", output.BusinessID)
	_, _ = fmt.Fprintf(w, "Status:      %s\n", output.Status)
	_, _ = fmt.Fprintf(w, "Executed:    %s\n", strings.Join(output.ExecutedSteps, ", "))
	_, _ = fmt.Fprintf(w, "Compensated: %s\n", strings.Join(output.CompensatedSteps, ", "))
	if output.ErrorMessage != nil {
		_, _ = fmt.Fprintf(w, "Error:       %s\n", *output.ErrorMessage)
	}
	return nil
}

// RunSagaCreateOrder creates an order through the order saga. failMessage makes the
// notification step fail and failUpdate makes the status update fail; both trigger
// compensation of the steps already executed.
//
// Requirements: Database must be migrated and accessible.
func RunSagaCreateOrder(
	ctx context.Context,
	useCase orderUsecase.SagaOrderUseCase,
	logger *slog.Logger,
	writer io.Writer,
	customerName, productName, amount string,
	failMessage, failUpdate bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if failMessage && failUpdate {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "--fail-message and --fail-update are mutually exclusive")
	}
	value, err := parseAmount(amount)
	if err != nil {
		return err
	}

	logger.Info("starting order saga",
		slog.String("customer", customerName),
		slog.String("product", productName),
		slog.Bool("fail_message", failMessage),
		slog.Bool("fail_update", failUpdate),
	)

	var saga *sagaDomain.SagaTransaction
	switch {
	case failMessage:
		saga, err = useCase.CreateOrderWithMessageFailure(ctx, customerName, productName, value)
	case failUpdate:
		saga, err = useCase.CreateOrderWithUpdateFailure(ctx, customerName, productName, value)
	default:
		saga, err = useCase.CreateOrder(ctx, customerName, productName, value)
	}

	if saga != nil {
		if writeErr := writeSaga(writer, saga, format); writeErr != nil {
			return writeErr
		}
	}
	if err != nil {
		return fmt.Errorf("failed to run order saga: %w", err)
	}
	return nil
}

// RunResumeSaga continues an unfinished saga from its persisted state.
//
// Requirements: Database must be migrated and the saga must exist.
func RunResumeSaga(
	ctx context.Context,
	useCase orderUsecase.SagaOrderUseCase,
	logger *slog.Logger,
	writer io.Writer,
	sagaID string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	id, err := uuid.Parse(sagaID)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "invalid saga id: %s", sagaID)
	}

	logger.Info("resuming saga", slog.String("saga_id", id.String()))

	saga, err := useCase.ResumeSaga(ctx, id)
	if saga != nil {
		if writeErr := writeSaga(writer, saga, format); writeErr != nil {
			return writeErr
		}
	}
	if err != nil {
		return fmt.Errorf("failed to resume saga: %w", err)
	}
	return nil
}
