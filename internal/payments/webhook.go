package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/internal/cart"
	"github.com/bazario/bazario-backend/internal/orders"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/razorpay"
)

// webhookDedupeTTL bounds the redis fast-path guard. The transactional
// guard stays authoritative; this only short-circuits rapid retries.
const webhookDedupeTTL = 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	PaymentCaptured(ctx context.Context, paymentID uuid.UUID)
}

type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// WebhookOutcome tells the controller what happened. The gateway only
// needs a 2xx; the status string aids debugging.
type WebhookOutcome struct {
	Event  string `json:"event"`
	Status string `json:"status"`
}

const (
	webhookProcessed = "processed"
	webhookIgnored   = "ignored"
)

// WebhookService reconciles gateway webhook deliveries with payments,
// orders, and the buyer's cart.
type WebhookService interface {
	HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookOutcome, error)
}

type webhookService struct {
	secret   string
	payments Repository
	orders   orders.Repository
	carts    cart.Repository
	dedupe   dedupeStore
	tx       txRunner
	notifier notifier
	logg     *logger.Logger
}

// NewWebhookService wires webhook reconciliation. The dedupe store may
// be nil; processing then relies solely on the transactional guard.
func NewWebhookService(
	secret string,
	paymentsRepo Repository,
	ordersRepo orders.Repository,
	cartsRepo cart.Repository,
	dedupe dedupeStore,
	tx txRunner,
	n notifier,
	logg *logger.Logger,
) (WebhookService, error) {
	if paymentsRepo == nil || ordersRepo == nil || cartsRepo == nil {
		return nil, fmt.Errorf("webhook repositories required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if n == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &webhookService{
		secret:   secret,
		payments: paymentsRepo,
		orders:   ordersRepo,
		carts:    cartsRepo,
		dedupe:   dedupe,
		tx:       tx,
		notifier: n,
		logg:     logg,
	}, nil
}

func (s *webhookService) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookOutcome, error) {
	if s.secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured")
	}
	if !razorpay.VerifySignature(s.secret, body, signature) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid webhook signature")
	}

	// The signature checked out, so this came from the gateway. A payload
	// we cannot parse will never parse on retry either; acknowledge it.
	event, err := razorpay.ParseWebhookEvent(body)
	if err != nil {
		s.logg.Warn(ctx, "unparseable webhook payload")
		return &WebhookOutcome{Status: webhookIgnored}, nil
	}

	switch event.Event {
	case razorpay.EventPaymentCaptured:
		return s.handleCaptured(ctx, event)
	case razorpay.EventPaymentFailed:
		return s.handleFailed(ctx, event)
	default:
		return &WebhookOutcome{Event: event.Event, Status: webhookIgnored}, nil
	}
}

func (s *webhookService) handleCaptured(ctx context.Context, event *razorpay.WebhookEvent) (*WebhookOutcome, error) {
	entity := event.Payload.Payment.Entity
	if entity.OrderID == "" {
		return &WebhookOutcome{Event: event.Event, Status: webhookIgnored}, nil
	}

	payment, err := s.payments.FindByGatewayOrderID(ctx, entity.OrderID)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			// Unknown payment: acknowledge so the gateway stops retrying.
			return &WebhookOutcome{Event: event.Event, Status: webhookIgnored}, nil
		}
		return nil, err
	}

	// Best-effort fast path. A redis outage falls through to the
	// transactional guard below.
	if s.dedupe != nil {
		key := s.dedupe.IdempotencyKey("webhook", entity.ID+":captured")
		fresh, err := s.dedupe.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), webhookDedupeTTL)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "key", key), "webhook dedupe store unavailable")
		} else if !fresh {
			return &WebhookOutcome{Event: event.Event, Status: webhookIgnored}, nil
		}
	}

	applied := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		paymentsTx := s.payments.WithTx(tx)
		ordersTx := s.orders.WithTx(tx)
		cartsTx := s.carts.WithTx(tx)

		current, err := paymentsTx.FindByID(ctx, payment.ID)
		if err != nil {
			return err
		}
		if current.Status == enums.PaymentStatusCompleted {
			return nil
		}

		if err := paymentsTx.MarkCompleted(ctx, current.ID, entity.ID); err != nil {
			return err
		}

		linked, err := ordersTx.FindByPaymentID(ctx, current.ID)
		if err != nil {
			return err
		}
		for i := range linked {
			order := &linked[i]
			if order.OrderStatus != enums.OrderStatusPending {
				continue
			}
			if err := ordersTx.UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed); err != nil {
				return err
			}
			if err := ordersTx.AppendHistory(ctx, &models.OrderStatusHistory{
				ID:      uuid.New(),
				OrderID: order.ID,
				Status:  enums.OrderStatusConfirmed,
			}); err != nil {
				return err
			}
		}

		if err := s.clearCart(ctx, cartsTx, current.BuyerID); err != nil {
			return err
		}

		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		s.notifier.PaymentCaptured(ctx, payment.ID)
		s.logg.Info(s.logg.WithField(ctx, "payment_id", payment.ID.String()), "payment captured")
	}
	return &WebhookOutcome{Event: event.Event, Status: webhookProcessed}, nil
}

func (s *webhookService) handleFailed(ctx context.Context, event *razorpay.WebhookEvent) (*WebhookOutcome, error) {
	entity := event.Payload.Payment.Entity
	if entity.OrderID == "" {
		return &WebhookOutcome{Event: event.Event, Status: webhookIgnored}, nil
	}

	payment, err := s.payments.FindByGatewayOrderID(ctx, entity.OrderID)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return &WebhookOutcome{Event: event.Event, Status: webhookIgnored}, nil
		}
		return nil, err
	}

	if payment.Status != enums.PaymentStatusPending {
		// A late failure after capture must not regress a terminal payment.
		return &WebhookOutcome{Event: event.Event, Status: webhookIgnored}, nil
	}

	if err := s.payments.MarkFailed(ctx, payment.ID); err != nil {
		return nil, err
	}
	s.logg.Warn(s.logg.WithField(ctx, "payment_id", payment.ID.String()), "payment failed")
	return &WebhookOutcome{Event: event.Event, Status: webhookProcessed}, nil
}

func (s *webhookService) clearCart(ctx context.Context, carts cart.Repository, buyerID uuid.UUID) error {
	buyerCart, err := carts.FindByUserID(ctx, buyerID)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil
		}
		return err
	}
	return carts.DeleteItems(ctx, buyerCart.ID)
}
