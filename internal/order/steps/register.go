package steps

import (
	"github.com/allisson/orderflow/internal/notification"
	sagaDomain "github.com/allisson/orderflow/internal/saga/domain"
)

// Registrar binds saga types to steps.
type Registrar interface {
	Register(sagaType string, steps ...sagaDomain.Step) error
}

// OrderSagaSteps returns CREATE_ORDER, SEND_MESSAGE and UPDATE_ORDER_STATUS in order.
func OrderSagaSteps(orders OrderStore, publisher notification.Publisher) []sagaDomain.Step {
	return []sagaDomain.Step{
		NewCreateOrderStep(orders),
		NewSendMessageStep(publisher),
		NewUpdateOrderStatusStep(orders),
	}
}

// Register binds every order saga type to the order steps.
func Register(registrar Registrar, orders OrderStore, publisher notification.Publisher) error {
	steps := OrderSagaSteps(orders, publisher)
	for _, sagaType := range []string{SagaTypeCreateOrder, SagaTypeCreateOrderMsgFail, SagaTypeCreateOrderUpdateFail} {
		if err := registrar.Register(sagaType, steps...); err != nil {
			return err
		}
	}
	return nil
}
