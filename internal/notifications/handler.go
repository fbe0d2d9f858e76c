package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/bazario/bazario-backend/internal/orders"
	"github.com/bazario/bazario-backend/internal/users"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/logger"
)

// Handler consumes notification tasks and sends the emails. Individual
// send failures are logged and skipped rather than failing the task, so
// one dead mailbox never blocks the rest of a batch.
type Handler struct {
	orders orders.Repository
	users  users.Repository
	mailer Mailer
	logg   *logger.Logger
}

// NewHandler wires the notification worker.
func NewHandler(ordersRepo orders.Repository, usersRepo users.Repository, mailer Mailer, logg *logger.Logger) (*Handler, error) {
	if ordersRepo == nil || usersRepo == nil {
		return nil, fmt.Errorf("notification repositories required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Handler{orders: ordersRepo, users: usersRepo, mailer: mailer, logg: logg}, nil
}

// Register attaches every task handler to the mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeOrderStatusEmail, h.HandleOrderStatus)
	mux.HandleFunc(TypePaymentCaptured, h.HandlePaymentCaptured)
	mux.HandleFunc(TypeOrderClaimedEmail, h.HandleOrderClaimed)
}

func (h *Handler) HandleOrderStatus(ctx context.Context, task *asynq.Task) error {
	var payload OrderStatusPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("order status payload: %w", err)
	}

	order, err := h.orders.FindByID(ctx, payload.OrderID)
	if err != nil {
		return err
	}

	subject, body := orderStatusEmail(order, payload.Status)
	h.sendTo(ctx, order.BuyerID, subject, body)
	if payload.NotifySeller {
		h.sendTo(ctx, order.SellerID, subject, body)
	}
	return nil
}

func (h *Handler) HandlePaymentCaptured(ctx context.Context, task *asynq.Task) error {
	var payload PaymentCapturedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("payment captured payload: %w", err)
	}

	linked, err := h.orders.FindByPaymentID(ctx, payload.PaymentID)
	if err != nil {
		return err
	}
	if len(linked) == 0 {
		return nil
	}

	subject, body := orderConfirmationEmail(linked)
	h.sendTo(ctx, linked[0].BuyerID, subject, body)

	seen := make(map[uuid.UUID]bool, len(linked))
	for i := range linked {
		order := &linked[i]
		if seen[order.SellerID] {
			continue
		}
		seen[order.SellerID] = true
		sellerSubject, sellerBody := sellerNewOrderEmail(order)
		h.sendTo(ctx, order.SellerID, sellerSubject, sellerBody)
	}
	return nil
}

func (h *Handler) HandleOrderClaimed(ctx context.Context, task *asynq.Task) error {
	var payload OrderClaimedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("order claimed payload: %w", err)
	}

	order, err := h.orders.FindByID(ctx, payload.OrderID)
	if err != nil {
		return err
	}

	subject, body := orderClaimedEmail(order)
	h.sendTo(ctx, order.BuyerID, subject, body)
	h.sendTo(ctx, order.SellerID, subject, body)
	return nil
}

func (h *Handler) sendTo(ctx context.Context, userID uuid.UUID, subject, body string) {
	user, err := h.users.FindByID(ctx, userID)
	if err != nil {
		h.logg.Error(h.logg.WithUserID(ctx, userID.String()), "resolve notification recipient", err)
		return
	}
	h.send(ctx, user, subject, body)
}

func (h *Handler) send(ctx context.Context, user *models.User, subject, body string) {
	if err := h.mailer.Send(user.Email, subject, body); err != nil {
		h.logg.Error(h.logg.WithUserID(ctx, user.ID.String()), "send notification email", err)
	}
}
