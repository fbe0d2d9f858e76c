package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bazario/bazario-backend/api/controllers"
	"github.com/bazario/bazario-backend/api/middleware"
	"github.com/bazario/bazario-backend/internal/cart"
	checkoutsvc "github.com/bazario/bazario-backend/internal/checkout"
	"github.com/bazario/bazario-backend/internal/orders"
	"github.com/bazario/bazario-backend/internal/payments"
	"github.com/bazario/bazario-backend/internal/settlements"
	"github.com/bazario/bazario-backend/pkg/config"
	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/enums"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	cartService cart.Service,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	webhookService payments.WebhookService,
	settlementsService settlements.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisP, logg))
	})

	// Gateway callbacks authenticate with an HMAC signature, not a JWT.
	r.Post("/api/v1/payments/razorpay/webhook", controllers.RazorpayWebhook(webhookService, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(cartService, logg))
			r.Delete("/", controllers.ClearCart(cartService, logg))
			r.Post("/items", controllers.AddCartItem(cartService, logg))
			r.Patch("/items/{itemId}", controllers.UpdateCartItem(cartService, logg))
			r.Delete("/items/{itemId}", controllers.RemoveCartItem(cartService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/checkout", controllers.Checkout(checkoutService, logg))
			r.Get("/me", controllers.MyOrders(ordersService, logg))
			r.Get("/seller", controllers.SellerOrders(ordersService, logg))
			r.Get("/delivery/mine", controllers.DeliveryOrders(ordersService, logg))
			r.Get("/delivery/available", controllers.AvailableDeliveries(ordersService, logg))
			r.Get("/{orderId}", controllers.GetOrder(ordersService, logg))
			r.Patch("/{orderId}/status", controllers.UpdateOrderStatus(ordersService, logg))
			r.Post("/{orderId}/claim", controllers.ClaimOrder(ordersService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.RoleAdmin, logg))

		r.Route("/settlements", func(r chi.Router) {
			r.Get("/pending", controllers.PendingSettlements(settlementsService, logg))
			r.Post("/", controllers.CreateSettlement(settlementsService, logg))
			r.Get("/", controllers.SettlementHistory(settlementsService, logg))
			r.Get("/{settlementId}", controllers.GetSettlement(settlementsService, logg))
		})
	})

	return r
}
