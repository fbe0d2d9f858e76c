package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/internal/cart"
	"github.com/bazario/bazario-backend/internal/checkout"
	"github.com/bazario/bazario-backend/internal/orders"
	"github.com/bazario/bazario-backend/internal/payments"
	"github.com/bazario/bazario-backend/internal/settlements"
	pkgAuth "github.com/bazario/bazario-backend/pkg/auth"
	"github.com/bazario/bazario-backend/pkg/config"
	"github.com/bazario/bazario-backend/pkg/enums"
	"github.com/bazario/bazario-backend/pkg/geo"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubCartService struct{}

func (stubCartService) GetCart(context.Context, uuid.UUID, enums.Role) (*cart.CartView, error) {
	return &cart.CartView{Items: []cart.CartItemView{}, Subtotal: "0"}, nil
}

func (stubCartService) AddItem(context.Context, uuid.UUID, enums.Role, cart.AddItemInput) (*cart.CartView, error) {
	return &cart.CartView{Items: []cart.CartItemView{}, Subtotal: "0"}, nil
}

func (stubCartService) UpdateItem(context.Context, uuid.UUID, enums.Role, uuid.UUID, int) (*cart.CartView, error) {
	return &cart.CartView{Items: []cart.CartItemView{}, Subtotal: "0"}, nil
}

func (stubCartService) RemoveItem(context.Context, uuid.UUID, enums.Role, uuid.UUID) (*cart.CartView, error) {
	return &cart.CartView{Items: []cart.CartItemView{}, Subtotal: "0"}, nil
}

func (stubCartService) ClearCart(context.Context, uuid.UUID) error { return nil }

type stubCheckoutService struct{}

func (stubCheckoutService) Checkout(context.Context, uuid.UUID, enums.Role, checkout.CheckoutInput) (*checkout.Result, error) {
	return &checkout.Result{}, nil
}

type stubOrdersService struct{}

func (stubOrdersService) GetOrder(context.Context, uuid.UUID, enums.Role, uuid.UUID) (*orders.OrderDetail, error) {
	return &orders.OrderDetail{}, nil
}

func (stubOrdersService) ListMine(context.Context, uuid.UUID, enums.Role, pagination.Params) (*orders.OrderPage, error) {
	return &orders.OrderPage{Orders: []orders.OrderDetail{}}, nil
}

func (stubOrdersService) ListSeller(context.Context, uuid.UUID, enums.Role, pagination.Params) (*orders.OrderPage, error) {
	return &orders.OrderPage{Orders: []orders.OrderDetail{}}, nil
}

func (stubOrdersService) ListDeliveryMine(context.Context, uuid.UUID, enums.Role, pagination.Params) (*orders.OrderPage, error) {
	return &orders.OrderPage{Orders: []orders.OrderDetail{}}, nil
}

func (stubOrdersService) AvailableDeliveries(context.Context, enums.Role, geo.Point, int, int) (*orders.AvailablePage, error) {
	return &orders.AvailablePage{Deliveries: []orders.AvailableDelivery{}}, nil
}

func (stubOrdersService) UpdateStatus(context.Context, uuid.UUID, enums.Role, uuid.UUID, enums.OrderStatus, string) (*orders.OrderDetail, error) {
	return &orders.OrderDetail{}, nil
}

func (stubOrdersService) Claim(context.Context, uuid.UUID, enums.Role, uuid.UUID) (*orders.OrderDetail, error) {
	return &orders.OrderDetail{}, nil
}

type stubWebhookService struct{}

func (stubWebhookService) HandleWebhook(context.Context, []byte, string) (*payments.WebhookOutcome, error) {
	return &payments.WebhookOutcome{Event: "payment.captured", Status: "processed"}, nil
}

type stubSettlementsService struct{}

func (stubSettlementsService) PendingSettlements(context.Context) (*settlements.PendingReport, error) {
	return &settlements.PendingReport{Pending: []settlements.PendingAggregate{}}, nil
}

func (stubSettlementsService) CreateSettlement(context.Context, uuid.UUID, settlements.CreateInput) (*settlements.SettlementDetail, error) {
	return &settlements.SettlementDetail{}, nil
}

func (stubSettlementsService) History(context.Context, settlements.HistoryFilter, pagination.Params) (*settlements.SettlementPage, error) {
	return &settlements.SettlementPage{}, nil
}

func (stubSettlementsService) GetSettlement(context.Context, uuid.UUID) (*settlements.SettlementDetail, error) {
	return &settlements.SettlementDetail{}, nil
}

func testRouter(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "bazario-test",
			ExpirationMinutes: 15,
		},
	}
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})

	handler := NewRouter(
		cfg,
		logg,
		stubPinger{},
		stubPinger{},
		stubCartService{},
		stubCheckoutService{},
		stubOrdersService{},
		stubWebhookService{},
		stubSettlementsService{},
	)
	return handler, cfg
}

func mintToken(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()

	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:     uuid.New(),
		ActiveRole: role,
		Roles:      []enums.Role{role},
		JTI:        uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestRouterHealthIsPublic(t *testing.T) {
	handler, _ := testRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestRouterWebhookSkipsAuth(t *testing.T) {
	handler, _ := testRouter(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/payments/razorpay/webhook", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d, want 200", rec.Code)
	}
}

func TestRouterRequiresBearerToken(t *testing.T) {
	handler, _ := testRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodGet, "/api/v1/orders/me"},
		{http.MethodGet, "/api/admin/v1/settlements/pending"},
	}
	for _, p := range paths {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(p.method, p.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s = %d, want 401", p.method, p.path, rec.Code)
		}
	}
}

func TestRouterAuthedRoutes(t *testing.T) {
	handler, cfg := testRouter(t)
	token := mintToken(t, cfg, enums.RoleCustomer)

	for _, path := range []string{"/api/v1/cart", "/api/v1/orders/me"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200, body %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestRouterAvailableDeliveriesCoordinateParams(t *testing.T) {
	handler, cfg := testRouter(t)
	token := mintToken(t, cfg, enums.RoleDeliveryPartner)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/delivery/available?latitude=18.52&longitude=73.85", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("available deliveries = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	// Coordinates are required.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders/delivery/available", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing coordinates = %d, want 400", rec.Code)
	}
}

func TestRouterAdminGate(t *testing.T) {
	handler, cfg := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/settlements/pending", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, enums.RoleCustomer))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer on admin route = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/v1/settlements/pending", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, enums.RoleAdmin))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin on admin route = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
}
