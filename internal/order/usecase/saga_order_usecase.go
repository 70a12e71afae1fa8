package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	orderDomain "github.com/allisson/orderflow/internal/order/domain"
	"github.com/allisson/orderflow/internal/order/steps"
	sagaDomain "github.com/allisson/orderflow/internal/saga/domain"
)

// sagaOrderUseCase implements SagaOrderUseCase.
type sagaOrderUseCase struct {
	sagas       SagaStarter
	definitions StepResolver
	sagaRepo    SagaRepository
	logger      *slog.Logger
	now         func() time.Time
}

// NewSagaOrderUseCase creates a new SagaOrderUseCase.
func NewSagaOrderUseCase(
	sagas SagaStarter,
	definitions StepResolver,
	sagaRepo SagaRepository,
	logger *slog.Logger,
) SagaOrderUseCase {
	return &sagaOrderUseCase{
		sagas:       sagas,
		definitions: definitions,
		sagaRepo:    sagaRepo,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder runs the order saga with no simulated failure.
func (u *sagaOrderUseCase) CreateOrder(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
) (*sagaDomain.SagaTransaction, error) {
	return u.start(ctx, steps.SagaTypeCreateOrder, "order", customerName, productName, amount, nil)
}

// CreateOrderWithMessageFailure runs the order saga with SEND_MESSAGE failing.
func (u *sagaOrderUseCase) CreateOrderWithMessageFailure(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
) (*sagaDomain.SagaTransaction, error) {
	return u.start(ctx, steps.SagaTypeCreateOrderMsgFail, "order_msg_fail", customerName, productName, amount,
		func(data *sagaDomain.Data) error { return steps.ShouldFailMessageKey.Set(data, true) })
}

// CreateOrderWithUpdateFailure runs the order saga with UPDATE_ORDER_STATUS failing.
func (u *sagaOrderUseCase) CreateOrderWithUpdateFailure(
	ctx context.Context,
	customerName, productName string,
	amount decimal.Decimal,
) (*sagaDomain.SagaTransaction, error) {
	return u.start(ctx, steps.SagaTypeCreateOrderUpdateFail, "order_update_fail", customerName, productName, amount,
		func(data *sagaDomain.Data) error { return steps.ShouldFailUpdateKey.Set(data, true) })
}

// ResumeSaga resumes a saga with the steps registered for its type.
func (u *sagaOrderUseCase) ResumeSaga(ctx context.Context, id uuid.UUID) (*sagaDomain.SagaTransaction, error) {
	saga, err := u.sagaRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sagaSteps, err := u.definitions.Steps(saga.SagaType)
	if err != nil {
		return nil, err
	}
	return u.sagas.ResumeSaga(ctx, id, sagaSteps)
}

func (u *sagaOrderUseCase) start(
	ctx context.Context,
	sagaType, businessPrefix, customerName, productName string,
	amount decimal.Decimal,
	extra func(data *sagaDomain.Data) error,
) (*sagaDomain.SagaTransaction, error) {
	// Fail fast on bad input instead of inside CREATE_ORDER.
	if _, err := orderDomain.NewOrder(customerName, productName, amount, u.now()); err != nil {
		return nil, err
	}

	data := sagaDomain.NewData()
	if err := steps.CustomerNameKey.Set(data, customerName); err != nil {
		return nil, err
	}
	if err := steps.ProductNameKey.Set(data, productName); err != nil {
		return nil, err
	}
	if err := steps.AmountKey.Set(data, amount); err != nil {
		return nil, err
	}
	if extra != nil {
		if err := extra(data); err != nil {
			return nil, err
		}
	}

	sagaSteps, err := u.definitions.Steps(sagaType)
	if err != nil {
		return nil, err
	}

	businessID := fmt.Sprintf("%s_%d", businessPrefix, u.now().UnixMilli())
	u.logger.Info("starting order saga",
		slog.String("saga_type", sagaType),
		slog.String("business_id", businessID),
		slog.String("customer_name", customerName),
	)
	return u.sagas.StartSaga(ctx, sagaType, businessID, data, sagaSteps)
}
