package payments

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bazario/bazario-backend/internal/cart"
	"github.com/bazario/bazario-backend/internal/orders"
	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/razorpay"
	"github.com/bazario/bazario-backend/pkg/types"
)

const testWebhookSecret = "whsec_test"

type captureNotifier struct {
	mu       sync.Mutex
	captured []uuid.UUID
}

func (n *captureNotifier) PaymentCaptured(_ context.Context, paymentID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.captured = append(n.captured, paymentID)
}

type memoryDedupe struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memoryDedupe) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memoryDedupe) IdempotencyKey(scope, id string) string {
	return "bz:idempotency:" + scope + ":" + id
}

type webhookHarness struct {
	conn     *gorm.DB
	svc      WebhookService
	notifier *captureNotifier
}

func setupWebhook(t *testing.T, dedupe dedupeStore) *webhookHarness {
	t.Helper()

	dsn := fmt.Sprintf("file:webhook_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Payment{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.Cart{},
		&models.CartItem{},
	))

	notifier := &captureNotifier{}
	logg := logger.New(logger.Options{ServiceName: "webhook-test", Output: io.Discard})
	svc, err := NewWebhookService(
		testWebhookSecret,
		NewRepository(conn),
		orders.NewRepository(conn),
		cart.NewRepository(conn),
		dedupe,
		db.NewFromConn(conn),
		notifier,
		logg,
	)
	require.NoError(t, err)
	return &webhookHarness{conn: conn, svc: svc, notifier: notifier}
}

func (h *webhookHarness) seedPaymentWithOrders(t *testing.T, gatewayOrderID string, orderCount int) (*models.Payment, []models.Order) {
	t.Helper()

	payment := &models.Payment{
		ID:              uuid.New(),
		BuyerID:         uuid.New(),
		Status:          enums.PaymentStatusPending,
		TotalAmount:     decimal.NewFromInt(500),
		Currency:        "INR",
		RazorpayOrderID: gatewayOrderID,
	}
	require.NoError(t, h.conn.Create(payment).Error)

	var created []models.Order
	for i := 0; i < orderCount; i++ {
		amount := decimal.NewFromInt(250)
		order := models.Order{
			ID:              uuid.New(),
			OrderNumber:     "ORD-20260829120000-" + uuid.NewString()[:6],
			BuyerID:         payment.BuyerID,
			SellerID:        uuid.New(),
			BuyerType:       enums.BuyerTypeCustomer,
			OrderStatus:     enums.OrderStatusPending,
			PickupAddress:   types.AddressSnapshot{Line1: "Shop 4", City: "Pune", State: "MH", PostalCode: "411001", Country: "IN"},
			DeliveryAddress: types.AddressSnapshot{Line1: "Flat 2", City: "Pune", State: "MH", PostalCode: "411002", Country: "IN"},
			OrderSubtotal:   amount,
			OrderTotal:      amount,
			PaymentID:       &payment.ID,
			PaymentAmount:   &amount,
		}
		require.NoError(t, h.conn.Create(&order).Error)
		created = append(created, order)
	}

	cartRow := &models.Cart{ID: uuid.New(), UserID: payment.BuyerID}
	require.NoError(t, h.conn.Create(cartRow).Error)
	require.NoError(t, h.conn.Create(&models.CartItem{
		ID:        uuid.New(),
		CartID:    cartRow.ID,
		ProductID: uuid.New(),
		SellerID:  uuid.New(),
		Quantity:  1,
	}).Error)

	return payment, created
}

func capturedBody(gatewayOrderID, paymentEntityID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"%s","order_id":"%s","amount":50000,"status":"captured"}}}}`,
		paymentEntityID, gatewayOrderID,
	))
}

func TestWebhookCapturedConfirmsOrdersAndClearsCart(t *testing.T) {
	h := setupWebhook(t, nil)
	ctx := context.Background()

	payment, seeded := h.seedPaymentWithOrders(t, "order_gw_1", 2)
	body := capturedBody("order_gw_1", "pay_123")
	signature := razorpay.SignPayload(testWebhookSecret, body)

	outcome, err := h.svc.HandleWebhook(ctx, body, signature)
	require.NoError(t, err)
	assert.Equal(t, "processed", outcome.Status)

	var reloaded models.Payment
	require.NoError(t, h.conn.First(&reloaded, "id = ?", payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusCompleted, reloaded.Status)
	require.NotNil(t, reloaded.RazorpayPaymentID)
	assert.Equal(t, "pay_123", *reloaded.RazorpayPaymentID)

	for _, order := range seeded {
		var current models.Order
		require.NoError(t, h.conn.First(&current, "id = ?", order.ID).Error)
		assert.Equal(t, enums.OrderStatusConfirmed, current.OrderStatus)
	}

	var cartItems int64
	require.NoError(t, h.conn.Model(&models.CartItem{}).Count(&cartItems).Error)
	assert.Zero(t, cartItems)

	require.Len(t, h.notifier.captured, 1)
	assert.Equal(t, payment.ID, h.notifier.captured[0])
}

func TestWebhookDuplicateDeliveryAppliesOnce(t *testing.T) {
	h := setupWebhook(t, nil)
	ctx := context.Background()

	payment, _ := h.seedPaymentWithOrders(t, "order_gw_2", 1)
	body := capturedBody("order_gw_2", "pay_456")
	signature := razorpay.SignPayload(testWebhookSecret, body)

	for i := 0; i < 2; i++ {
		outcome, err := h.svc.HandleWebhook(ctx, body, signature)
		require.NoError(t, err)
		assert.Equal(t, "processed", outcome.Status)
	}

	// Side effects applied exactly once: one confirmed-history row per
	// order, one notification.
	var historyCount int64
	require.NoError(t, h.conn.Model(&models.OrderStatusHistory{}).
		Where("status = ?", enums.OrderStatusConfirmed).
		Count(&historyCount).Error)
	assert.EqualValues(t, 1, historyCount)
	assert.Len(t, h.notifier.captured, 1)

	var reloaded models.Payment
	require.NoError(t, h.conn.First(&reloaded, "id = ?", payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusCompleted, reloaded.Status)
}

func TestWebhookDedupeFastPathShortCircuits(t *testing.T) {
	h := setupWebhook(t, &memoryDedupe{})
	ctx := context.Background()

	h.seedPaymentWithOrders(t, "order_gw_3", 1)
	body := capturedBody("order_gw_3", "pay_789")
	signature := razorpay.SignPayload(testWebhookSecret, body)

	first, err := h.svc.HandleWebhook(ctx, body, signature)
	require.NoError(t, err)
	assert.Equal(t, "processed", first.Status)

	second, err := h.svc.HandleWebhook(ctx, body, signature)
	require.NoError(t, err)
	assert.Equal(t, "ignored", second.Status)
	assert.Len(t, h.notifier.captured, 1)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := setupWebhook(t, nil)

	body := capturedBody("order_gw_4", "pay_000")
	_, err := h.svc.HandleWebhook(context.Background(), body, "deadbeef")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = h.svc.HandleWebhook(context.Background(), body, "")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestWebhookUnknownPaymentIgnored(t *testing.T) {
	h := setupWebhook(t, nil)

	body := capturedBody("order_gw_missing", "pay_x")
	signature := razorpay.SignPayload(testWebhookSecret, body)

	outcome, err := h.svc.HandleWebhook(context.Background(), body, signature)
	require.NoError(t, err)
	assert.Equal(t, "ignored", outcome.Status)
	assert.Empty(t, h.notifier.captured)
}

func TestWebhookPaymentFailedLeavesOrdersAlone(t *testing.T) {
	h := setupWebhook(t, nil)
	ctx := context.Background()

	payment, seeded := h.seedPaymentWithOrders(t, "order_gw_5", 1)
	body := []byte(fmt.Sprintf(
		`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_f","order_id":"%s","status":"failed"}}}}`,
		"order_gw_5",
	))
	signature := razorpay.SignPayload(testWebhookSecret, body)

	outcome, err := h.svc.HandleWebhook(ctx, body, signature)
	require.NoError(t, err)
	assert.Equal(t, "processed", outcome.Status)

	var reloaded models.Payment
	require.NoError(t, h.conn.First(&reloaded, "id = ?", payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusFailed, reloaded.Status)

	var current models.Order
	require.NoError(t, h.conn.First(&current, "id = ?", seeded[0].ID).Error)
	assert.Equal(t, enums.OrderStatusPending, current.OrderStatus)
}

func TestWebhookLateFailureCannotRegressCapturedPayment(t *testing.T) {
	h := setupWebhook(t, nil)
	ctx := context.Background()

	payment, seeded := h.seedPaymentWithOrders(t, "order_gw_6", 1)

	captured := capturedBody("order_gw_6", "pay_late")
	outcome, err := h.svc.HandleWebhook(ctx, captured, razorpay.SignPayload(testWebhookSecret, captured))
	require.NoError(t, err)
	assert.Equal(t, "processed", outcome.Status)

	// Razorpay can deliver a failure for an earlier attempt after the
	// capture event. Completed is terminal.
	failed := []byte(fmt.Sprintf(
		`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_old","order_id":"%s","status":"failed"}}}}`,
		"order_gw_6",
	))
	outcome, err = h.svc.HandleWebhook(ctx, failed, razorpay.SignPayload(testWebhookSecret, failed))
	require.NoError(t, err)
	assert.Equal(t, "ignored", outcome.Status)

	var reloaded models.Payment
	require.NoError(t, h.conn.First(&reloaded, "id = ?", payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusCompleted, reloaded.Status)

	var current models.Order
	require.NoError(t, h.conn.First(&current, "id = ?", seeded[0].ID).Error)
	assert.Equal(t, enums.OrderStatusConfirmed, current.OrderStatus)
}

func TestWebhookAcknowledgesUnparseablePayload(t *testing.T) {
	h := setupWebhook(t, nil)

	body := []byte(`{"event":"payment.captured","payload":{"payment":`)
	signature := razorpay.SignPayload(testWebhookSecret, body)

	// Signed garbage will never parse on retry either; it must be
	// acknowledged rather than bounced back to the gateway.
	outcome, err := h.svc.HandleWebhook(context.Background(), body, signature)
	require.NoError(t, err)
	assert.Equal(t, "ignored", outcome.Status)
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	h := setupWebhook(t, nil)

	body := []byte(`{"event":"refund.created","payload":{"payment":{"entity":{}}}}`)
	signature := razorpay.SignPayload(testWebhookSecret, body)

	outcome, err := h.svc.HandleWebhook(context.Background(), body, signature)
	require.NoError(t, err)
	assert.Equal(t, "ignored", outcome.Status)
}
