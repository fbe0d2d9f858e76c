package notifications

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
)

// Task type names routed through the asynq queue.
const (
	TypeOrderStatusEmail  = "email:order_status"
	TypePaymentCaptured   = "email:payment_captured"
	TypeOrderClaimedEmail = "email:order_claimed"
)

// OrderStatusPayload notifies about one order's status change. The buyer
// is always mailed; the seller only for cancellations and refund states.
type OrderStatusPayload struct {
	OrderID      uuid.UUID         `json:"order_id"`
	Status       enums.OrderStatus `json:"status"`
	NotifySeller bool              `json:"notify_seller"`
}

// PaymentCapturedPayload triggers the buyer confirmation plus one
// new-order email per seller under the payment.
type PaymentCapturedPayload struct {
	PaymentID uuid.UUID `json:"payment_id"`
}

// OrderClaimedPayload notifies buyer and seller that a delivery partner
// picked the order up for delivery.
type OrderClaimedPayload struct {
	OrderID uuid.UUID `json:"order_id"`
}

func newTask(taskType string, payload any) (*asynq.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal task payload")
	}
	return asynq.NewTask(taskType, raw), nil
}
