package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/allisson/orderflow/internal/metrics"
	orderDomain "github.com/allisson/orderflow/internal/order/domain"
	sagaDomain "github.com/allisson/orderflow/internal/saga/domain"
)

const metricsDomain = "orders"

func record(ctx context.Context, m metrics.BusinessMetrics, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RecordOperation(ctx, metricsDomain, operation, status)
	m.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// outboxOrderUseCaseWithMetrics decorates OutboxOrderUseCase with metrics instrumentation.
type outboxOrderUseCaseWithMetrics struct {
	next    OutboxOrderUseCase
	metrics metrics.BusinessMetrics
}

// NewOutboxOrderUseCaseWithMetrics wraps an OutboxOrderUseCase with metrics recording.
func NewOutboxOrderUseCaseWithMetrics(useCase OutboxOrderUseCase, m metrics.BusinessMetrics) OutboxOrderUseCase {
	return &outboxOrderUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// CreateOrderWithOutbox records metrics for order creation.
func (o *outboxOrderUseCaseWithMetrics) CreateOrderWithOutbox(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
	simulateFailure bool,
) (*orderDomain.Order, error) {
	start := time.Now()
	order, err := o.next.CreateOrderWithOutbox(ctx, customerName, productName, amount, simulateFailure)
	record(ctx, o.metrics, "order_create", start, err)
	return order, err
}

// CancelOrderWithOutbox records metrics for order cancellation.
func (o *outboxOrderUseCaseWithMetrics) CancelOrderWithOutbox(
	ctx context.Context,
	orderID uuid.UUID,
	reason string,
) (*orderDomain.Order, error) {
	start := time.Now()
	order, err := o.next.CancelOrderWithOutbox(ctx, orderID, reason)
	record(ctx, o.metrics, "order_cancel", start, err)
	return order, err
}

// CreateMultipleOrdersWithOutbox records metrics for batch order creation.
func (o *outboxOrderUseCaseWithMetrics) CreateMultipleOrdersWithOutbox(
	ctx context.Context,
	count int,
	customerName string,
	simulateFailure bool,
) ([]*orderDomain.Order, error) {
	start := time.Now()
	orders, err := o.next.CreateMultipleOrdersWithOutbox(ctx, count, customerName, simulateFailure)
	record(ctx, o.metrics, "order_create_batch", start, err)
	return orders, err
}

// sagaOrderUseCaseWithMetrics decorates SagaOrderUseCase with metrics instrumentation.
type sagaOrderUseCaseWithMetrics struct {
	next    SagaOrderUseCase
	metrics metrics.BusinessMetrics
}

// NewSagaOrderUseCaseWithMetrics wraps a SagaOrderUseCase with metrics recording.
func NewSagaOrderUseCaseWithMetrics(useCase SagaOrderUseCase, m metrics.BusinessMetrics) SagaOrderUseCase {
	return &sagaOrderUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// CreateOrder records metrics for saga order creation.
func (s *sagaOrderUseCaseWithMetrics) CreateOrder(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
) (*sagaDomain.SagaTransaction, error) {
	start := time.Now()
	saga, err := s.next.CreateOrder(ctx, customerName, productName, amount)
	record(ctx, s.metrics, "saga_order_create", start, err)
	return saga, err
}

// CreateOrderWithMessageFailure records metrics for the message failure scenario.
func (s *sagaOrderUseCaseWithMetrics) CreateOrderWithMessageFailure(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
) (*sagaDomain.SagaTransaction, error) {
	start := time.Now()
	saga, err := s.next.CreateOrderWithMessageFailure(ctx, customerName, productName, amount)
	record(ctx, s.metrics, "saga_order_create_msg_fail", start, err)
	return saga, err
}

// CreateOrderWithUpdateFailure records metrics for the update failure scenario.
func (s *sagaOrderUseCaseWithMetrics) CreateOrderWithUpdateFailure(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
) (*sagaDomain.SagaTransaction, error) {
	start := time.Now()
	saga, err := s.next.CreateOrderWithUpdateFailure(ctx, customerName, productName, amount)
	record(ctx, s.metrics, "saga_order_create_update_fail", start, err)
	return saga, err
}

// ResumeSaga records metrics for saga resumption.
func (s *sagaOrderUseCaseWithMetrics) ResumeSaga(ctx context.Context, id uuid.UUID) (*sagaDomain.SagaTransaction, error) {
	start := time.Now()
	saga, err := s.next.ResumeSaga(ctx, id)
	record(ctx, s.metrics, "saga_resume", start, err)
	return saga, err
}
