package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/bazario/bazario-backend/pkg/enums"
	"github.com/bazario/bazario-backend/pkg/logger"
)

type taskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer pushes notification tasks onto the queue. Every method is
// fire-and-forget: enqueue failures are logged and swallowed so a broken
// broker can never undo a committed business transaction.
type Enqueuer struct {
	client   taskClient
	maxRetry int
	logg     *logger.Logger
}

// NewEnqueuer wraps an asynq client.
func NewEnqueuer(client taskClient, maxRetry int, logg *logger.Logger) *Enqueuer {
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &Enqueuer{client: client, maxRetry: maxRetry, logg: logg}
}

// OrderStatusChanged emails the buyer about the new status, and the
// seller too when requested.
func (e *Enqueuer) OrderStatusChanged(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, notifySeller bool) {
	e.enqueue(ctx, TypeOrderStatusEmail, OrderStatusPayload{
		OrderID:      orderID,
		Status:       status,
		NotifySeller: notifySeller,
	})
}

// PaymentCaptured emails the buyer a confirmation and each seller a
// new-order notice.
func (e *Enqueuer) PaymentCaptured(ctx context.Context, paymentID uuid.UUID) {
	e.enqueue(ctx, TypePaymentCaptured, PaymentCapturedPayload{PaymentID: paymentID})
}

// OrderClaimed emails buyer and seller that a delivery partner claimed
// the order.
func (e *Enqueuer) OrderClaimed(ctx context.Context, orderID uuid.UUID) {
	e.enqueue(ctx, TypeOrderClaimedEmail, OrderClaimedPayload{OrderID: orderID})
}

func (e *Enqueuer) enqueue(ctx context.Context, taskType string, payload any) {
	task, err := newTask(taskType, payload)
	if err != nil {
		e.logg.Error(ctx, "build notification task", err)
		return
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(e.maxRetry)); err != nil {
		e.logg.Error(e.logg.WithField(ctx, "task_type", taskType), "enqueue notification task", err)
	}
}
