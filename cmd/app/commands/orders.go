package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/allisson/orderflow/internal/errors"
	orderDomain "github.com/allisson/orderflow/internal/order/domain"
	orderUsecase "github.com/allisson/orderflow/internal/order/usecase"
)

type orderOutput struct {
	ID           uuid.UUID `json:"id"`
	CustomerName string    `json:"customer_name"`
	ProductName  string    `json:"product_name"`
	Amount       string    `json:"amount"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newOrderOutput(order *orderDomain.Order) orderOutput {
	return orderOutput{
		ID:           order.ID,
		CustomerName: order.CustomerName,
		ProductName:  order.ProductName,
		Amount:       order.Amount.StringFixed(2),
		Status:       string(order.Status),
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
	}
}

func writeOrderText(w io.Writer, order orderOutput) {
	_, _ = fmt.Fprintf(w, "ID:       %s\n", order.ID)
	_, _ = fmt.Fprintf(w, "Customer: %s\n", order.CustomerName)
	_, _ = fmt.Fprintf(w, "Product:  %s\n", order.ProductName)
	_, _ = fmt.Fprintf(w, "Amount:   %s\n", order.Amount)
	_, _ = fmt.Fprintf(w, "Status:   %s\n", order.Status)
}

// parseAmount parses a decimal amount such as "199.90".
func parseAmount(amount string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Decimal{}, apperrors.Wrapf(apperrors.ErrInvalidInput, "invalid amount: %s", amount)
	}
	return value, nil
}

// RunCreateOrder creates a confirmed order together with its ORDER_CONFIRMED outbox event.
// With simulateFailure the transaction is rolled back after both writes, leaving no trace.
//
// Requirements: Database must be migrated and accessible.
func RunCreateOrder(
	ctx context.Context,
	useCase orderUsecase.OutboxOrderUseCase,
	logger *slog.Logger,
	writer io.Writer,
	customerName, productName, amount string,
	simulateFailure bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	value, err := parseAmount(amount)
	if err != nil {
		return err
	}

	logger.Info("creating order",
		slog.String("customer", customerName),
		slog.String("product", productName),
		slog.Bool("simulate_failure", simulateFailure),
	)

	order, err := useCase.CreateOrderWithOutbox(ctx, customerName, productName, value, simulateFailure)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	output := newOrderOutput(order)
	if format == FormatJSON {
		return writeJSON(writer, output)
	}

	_, _ = fmt.Fprintln(writer, "Order created successfully")
	writeOrderText(writer, output)
	return nil
}

// RunCancelOrder cancels an order and records its ORDER_CANCELLED outbox event.
//
// Requirements: Database must be migrated and the order must exist.
func RunCancelOrder(
	ctx context.Context,
	useCase orderUsecase.OutboxOrderUseCase,
	logger *slog.Logger,
	writer io.Writer,
	orderID, reason string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	id, err := uuid.Parse(orderID)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "invalid order id: %s", orderID)
	}

	logger.Info("cancelling order", slog.String("order_id", id.String()))

	order, err := useCase.CancelOrderWithOutbox(ctx, id, reason)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	output := newOrderOutput(order)
	if format == FormatJSON {
		return writeJSON(writer, output)
	}

	_, _ = fmt.Fprintln(writer, "Order cancelled successfully")
	writeOrderText(writer, output)
	return nil
}

// RunCreateOrders creates count orders in a single transaction. With simulateFailure
// the last order fails and none of them is kept.
//
// Requirements: Database must be migrated and accessible.
func RunCreateOrders(
	ctx context.Context,
	useCase orderUsecase.OutboxOrderUseCase,
	logger *slog.Logger,
	writer io.Writer,
	count int,
	customerName string,
	simulateFailure bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if count <= 0 {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "count must be a positive number, got: %d", count)
	}

	logger.Info("creating orders",
		slog.Int("count", count),
		slog.String("customer", customerName),
		slog.Bool("simulate_failure", simulateFailure),
	)

	orders, err := useCase.CreateMultipleOrdersWithOutbox(ctx, count, customerName, simulateFailure)
	if err != nil {
		return fmt.Errorf("failed to create orders: %w", err)
	}

	outputs := make([]orderOutput, 0, len(orders))
	for _, order := range orders {
		outputs = append(outputs, newOrderOutput(order))
	}

	if format == FormatJSON {
		return writeJSON(writer, map[string]any{
			"count":  len(outputs),
			"orders": outputs,
		})
	}

	_, _ = fmt.Fprintf(writer, "Created %d order(s)\n", len(outputs))
	for _, order := range outputs {
		_, _ = fmt.Fprintf(writer, "  %s  %-12s %10s  %s\n", order.ID, order.ProductName, order.Amount, order.Status)
	}
	return nil
}
