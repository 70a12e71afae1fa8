// Package steps implements the order saga steps.
package steps

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	orderDomain "github.com/allisson/orderflow/internal/order/domain"
	sagaDomain "github.com/allisson/orderflow/internal/saga/domain"
)

// Saga data keys shared by the order steps.
var (
	CustomerNameKey        = sagaDomain.NewKey[string]("customerName")
	ProductNameKey         = sagaDomain.NewKey[string]("productName")
	AmountKey              = sagaDomain.NewKey[decimal.Decimal]("amount")
	OrderIDKey             = sagaDomain.NewKey[uuid.UUID]("orderId")
	MessageIDKey           = sagaDomain.NewKey[string]("messageId")
	OriginalOrderStatusKey = sagaDomain.NewKey[orderDomain.OrderStatus]("originalOrderStatus")
	ShouldFailMessageKey   = sagaDomain.NewKey[bool]("shouldFailMessage")
	ShouldFailUpdateKey    = sagaDomain.NewKey[bool]("shouldFailUpdate")
)

// Step names, in execution order.
const (
	CreateOrderStepName       = "CREATE_ORDER"
	SendMessageStepName       = "SEND_MESSAGE"
	UpdateOrderStatusStepName = "UPDATE_ORDER_STATUS"
)

// Saga types that run the order steps.
const (
	SagaTypeCreateOrder           = "CREATE_ORDER"
	SagaTypeCreateOrderMsgFail    = "CREATE_ORDER_MSG_FAIL"
	SagaTypeCreateOrderUpdateFail = "CREATE_ORDER_UPDATE_FAIL"
)
