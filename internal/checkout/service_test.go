package checkout

import (
	"context"
	"fmt"
	"io"
	"regexp"
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
	"github.com/bazario/bazario-backend/internal/catalog"
	"github.com/bazario/bazario-backend/internal/orders"
	"github.com/bazario/bazario-backend/internal/payments"
	"github.com/bazario/bazario-backend/internal/users"
	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/geo"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/razorpay"
)

type fakeGateway struct {
	fail       bool
	lastAmount int64
	calls      int
}

func (g *fakeGateway) CreateOrder(_ context.Context, params razorpay.CreateOrderParams) (*razorpay.GatewayOrder, error) {
	g.calls++
	if g.fail {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway request failed")
	}
	g.lastAmount = params.AmountSubunits
	return &razorpay.GatewayOrder{
		ID:       "order_" + uuid.NewString()[:8],
		Amount:   params.AmountSubunits,
		Currency: "INR",
		Status:   "created",
	}, nil
}

func (g *fakeGateway) Currency() string { return "INR" }

type harness struct {
	conn    *gorm.DB
	svc     Service
	gateway *fakeGateway
	carts   cart.Repository
}

func setupCheckout(t *testing.T) *harness {
	t.Helper()

	dsn := fmt.Sprintf("file:checkout_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, conn.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.Product{},
		&models.ProductPricing{},
		&models.ProductInventory{},
		&models.Cart{},
		&models.CartItem{},
		&models.Coupon{},
		&models.Payment{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
	))

	gateway := &fakeGateway{}
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	cartsRepo := cart.NewRepository(conn)

	svc, err := NewService(
		cartsRepo,
		catalog.NewRepository(conn),
		users.NewRepository(conn),
		orders.NewRepository(conn),
		payments.NewRepository(conn),
		gateway,
		geo.FeeParams{BaseFee: decimal.NewFromInt(10), PerKmFee: decimal.NewFromInt(1)},
		db.NewFromConn(conn),
		logg,
	)
	require.NoError(t, err)

	return &harness{conn: conn, svc: svc, gateway: gateway, carts: cartsRepo}
}

func (h *harness) seedUser(t *testing.T, role enums.Role, lat, lng float64) (*models.User, *models.Address) {
	t.Helper()

	user := &models.User{
		ID:         uuid.New(),
		Email:      uuid.NewString()[:8] + "@bazario.test",
		FullName:   "Test User",
		Roles:      []enums.Role{role},
		ActiveRole: role,
		IsActive:   true,
	}
	require.NoError(t, h.conn.Create(user).Error)

	address := &models.Address{
		ID:         uuid.New(),
		UserID:     user.ID,
		Street:     "12 MG Road",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
		Country:    "IN",
		Latitude:   &lat,
		Longitude:  &lng,
	}
	require.NoError(t, h.conn.Create(address).Error)
	require.NoError(t, h.conn.Model(user).Update("active_address_id", address.ID).Error)
	user.ActiveAddressID = &address.ID
	return user, address
}

func (h *harness) seedProduct(t *testing.T, sellerID uuid.UUID, price string, stock int) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:         uuid.New(),
		SellerID:   sellerID,
		SellerType: enums.SellerTypeRetailer,
		Name:       "Ghee 1L",
		SKU:        "SKU-" + uuid.NewString()[:8],
		IsActive:   true,
	}
	require.NoError(t, h.conn.Create(product).Error)
	require.NoError(t, h.conn.Create(&models.ProductPricing{
		ID:        uuid.New(),
		ProductID: product.ID,
		BuyerType: enums.BuyerTypeCustomer,
		Price:     decimal.RequireFromString(price),
		IsActive:  true,
	}).Error)
	require.NoError(t, h.conn.Create(&models.ProductInventory{
		ProductID:     product.ID,
		StockQuantity: stock,
	}).Error)
	return product
}

func (h *harness) addToCart(t *testing.T, userID uuid.UUID, product *models.Product, quantity int) {
	t.Helper()

	ctx := context.Background()
	cartRow, err := h.carts.FindOrCreate(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, h.carts.CreateItem(ctx, &models.CartItem{
		ID:        uuid.New(),
		CartID:    cartRow.ID,
		ProductID: product.ID,
		SellerID:  product.SellerID,
		Quantity:  quantity,
	}))
}

func (h *harness) stockOf(t *testing.T, productID uuid.UUID) int {
	t.Helper()

	var inventory models.ProductInventory
	require.NoError(t, h.conn.First(&inventory, "product_id = ?", productID).Error)
	return inventory.StockQuantity
}

func TestCheckoutSplitsCartPerSeller(t *testing.T) {
	h := setupCheckout(t)
	ctx := context.Background()

	buyer, _ := h.seedUser(t, enums.RoleCustomer, 18.5204, 73.8567)
	sellerA, _ := h.seedUser(t, enums.RoleRetailer, 18.5310, 73.8440)
	sellerB, _ := h.seedUser(t, enums.RoleRetailer, 18.4600, 73.8500)

	productA := h.seedProduct(t, sellerA.ID, "100.00", 10)
	productB := h.seedProduct(t, sellerB.ID, "40.00", 10)
	h.addToCart(t, buyer.ID, productA, 2)
	h.addToCart(t, buyer.ID, productB, 5)

	result, err := h.svc.Checkout(ctx, buyer.ID, enums.RoleCustomer, CheckoutInput{
		DeliveryAddressID: *buyer.ActiveAddressID,
	})
	require.NoError(t, err)
	require.Len(t, result.Orders, 2)
	require.NotNil(t, result.Payment)
	assert.Equal(t, enums.PaymentStatusPending, result.Payment.Status)
	assert.NotEmpty(t, result.Payment.RazorpayOrderID)

	sum := decimal.Zero
	for _, order := range result.Orders {
		assert.Regexp(t, regexp.MustCompile(`^ORD-\d{14}-[0-9A-F]{6}$`), order.OrderNumber)
		assert.True(t, order.OrderTotal.Equal(order.OrderSubtotal.Add(order.DeliveryFee)),
			"order total must equal subtotal plus fee")
		half := order.OrderSubtotal.Div(decimal.NewFromInt(2))
		assert.True(t, order.DeliveryFee.LessThanOrEqual(half),
			"delivery fee must never exceed half the subtotal")
		require.NotNil(t, order.PaymentID)
		assert.Equal(t, result.Payment.ID, *order.PaymentID)
		require.NotNil(t, order.PaymentAmount)
		assert.True(t, order.PaymentAmount.Equal(order.OrderTotal))
		sum = sum.Add(order.OrderTotal)
	}
	assert.True(t, result.Payment.TotalAmount.Equal(sum), "payment covers the order totals")
	assert.Equal(t, sum.Mul(decimal.NewFromInt(100)).IntPart(), h.gateway.lastAmount)

	// Stock decremented, cart untouched until payment capture.
	assert.Equal(t, 8, h.stockOf(t, productA.ID))
	assert.Equal(t, 5, h.stockOf(t, productB.ID))
	cartRow, err := h.carts.FindByUserID(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Len(t, cartRow.Items, 2)

	var historyCount int64
	require.NoError(t, h.conn.Model(&models.OrderStatusHistory{}).Count(&historyCount).Error)
	assert.EqualValues(t, 2, historyCount)
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	h := setupCheckout(t)
	ctx := context.Background()

	buyer, _ := h.seedUser(t, enums.RoleCustomer, 18.52, 73.85)
	seller, _ := h.seedUser(t, enums.RoleRetailer, 18.53, 73.84)

	fine := h.seedProduct(t, seller.ID, "50.00", 10)
	scarce := h.seedProduct(t, seller.ID, "80.00", 1)
	h.addToCart(t, buyer.ID, fine, 2)
	h.addToCart(t, buyer.ID, scarce, 3)

	_, err := h.svc.Checkout(ctx, buyer.ID, enums.RoleCustomer, CheckoutInput{
		DeliveryAddressID: *buyer.ActiveAddressID,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	// Nothing persisted, no stock touched.
	var orderCount int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Zero(t, orderCount)
	assert.Equal(t, 10, h.stockOf(t, fine.ID))
	assert.Equal(t, 1, h.stockOf(t, scarce.ID))
}

func TestCheckoutGatewayFailureRollsBack(t *testing.T) {
	h := setupCheckout(t)
	ctx := context.Background()

	buyer, _ := h.seedUser(t, enums.RoleCustomer, 18.52, 73.85)
	seller, _ := h.seedUser(t, enums.RoleRetailer, 18.53, 73.84)
	product := h.seedProduct(t, seller.ID, "50.00", 10)
	h.addToCart(t, buyer.ID, product, 2)

	h.gateway.fail = true
	_, err := h.svc.Checkout(ctx, buyer.ID, enums.RoleCustomer, CheckoutInput{
		DeliveryAddressID: *buyer.ActiveAddressID,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())

	var orderCount, paymentCount int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&orderCount).Error)
	require.NoError(t, h.conn.Model(&models.Payment{}).Count(&paymentCount).Error)
	assert.Zero(t, orderCount)
	assert.Zero(t, paymentCount)
	assert.Equal(t, 10, h.stockOf(t, product.ID))
}

func TestCheckoutRejectsMissingPricingTier(t *testing.T) {
	h := setupCheckout(t)
	ctx := context.Background()

	buyer, _ := h.seedUser(t, enums.RoleCustomer, 18.52, 73.85)
	seller, _ := h.seedUser(t, enums.RoleRetailer, 18.53, 73.84)

	// Product with stock but no pricing tier at all.
	product := &models.Product{
		ID:         uuid.New(),
		SellerID:   seller.ID,
		SellerType: enums.SellerTypeRetailer,
		Name:       "Unpriced Widget",
		IsActive:   true,
	}
	require.NoError(t, h.conn.Create(product).Error)
	require.NoError(t, h.conn.Create(&models.ProductInventory{ProductID: product.ID, StockQuantity: 5}).Error)
	h.addToCart(t, buyer.ID, product, 1)

	_, err := h.svc.Checkout(ctx, buyer.ID, enums.RoleCustomer, CheckoutInput{
		DeliveryAddressID: *buyer.ActiveAddressID,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestCheckoutRejectsForeignDeliveryAddress(t *testing.T) {
	h := setupCheckout(t)
	ctx := context.Background()

	buyer, _ := h.seedUser(t, enums.RoleCustomer, 18.52, 73.85)
	other, otherAddr := h.seedUser(t, enums.RoleCustomer, 18.40, 73.80)
	_ = other

	seller, _ := h.seedUser(t, enums.RoleRetailer, 18.53, 73.84)
	product := h.seedProduct(t, seller.ID, "50.00", 10)
	h.addToCart(t, buyer.ID, product, 1)

	_, err := h.svc.Checkout(ctx, buyer.ID, enums.RoleCustomer, CheckoutInput{
		DeliveryAddressID: otherAddr.ID,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestCheckoutEmptyCart(t *testing.T) {
	h := setupCheckout(t)

	buyer, _ := h.seedUser(t, enums.RoleCustomer, 18.52, 73.85)
	_, err := h.svc.Checkout(context.Background(), buyer.ID, enums.RoleCustomer, CheckoutInput{
		DeliveryAddressID: *buyer.ActiveAddressID,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestCheckoutCouponAllocatesProportionally(t *testing.T) {
	h := setupCheckout(t)
	ctx := context.Background()

	buyer, _ := h.seedUser(t, enums.RoleCustomer, 18.52, 73.85)
	sellerA, _ := h.seedUser(t, enums.RoleRetailer, 18.53, 73.84)
	sellerB, _ := h.seedUser(t, enums.RoleRetailer, 18.46, 73.85)

	// Subtotals 300 and 100: a 10% coupon yields 40 split 30/10.
	productA := h.seedProduct(t, sellerA.ID, "100.00", 10)
	productB := h.seedProduct(t, sellerB.ID, "100.00", 10)
	h.addToCart(t, buyer.ID, productA, 3)
	h.addToCart(t, buyer.ID, productB, 1)

	require.NoError(t, h.conn.Create(&models.Coupon{
		ID:            uuid.New(),
		Code:          "SAVE10",
		DiscountType:  enums.DiscountTypePercent,
		DiscountValue: decimal.NewFromInt(10),
		IsActive:      true,
	}).Error)

	result, err := h.svc.Checkout(ctx, buyer.ID, enums.RoleCustomer, CheckoutInput{
		DeliveryAddressID: *buyer.ActiveAddressID,
		CouponCode:        "save10",
	})
	require.NoError(t, err)
	require.Len(t, result.Orders, 2)

	totalDiscount := decimal.Zero
	for _, order := range result.Orders {
		require.NotNil(t, order.CouponCode)
		assert.Equal(t, "SAVE10", *order.CouponCode)
		assert.True(t, order.OrderSubtotal.Equal(order.OriginalSubtotal.Sub(order.DiscountAmount)))
		totalDiscount = totalDiscount.Add(order.DiscountAmount)
	}
	assert.True(t, totalDiscount.Equal(decimal.NewFromInt(40)),
		"allocations must sum to the coupon discount, got %s", totalDiscount)

	var coupon models.Coupon
	require.NoError(t, h.conn.First(&coupon, "code = ?", "SAVE10").Error)
	assert.Equal(t, 1, coupon.UsedCount)
}

func TestCheckoutRejectsUnusableCoupon(t *testing.T) {
	h := setupCheckout(t)
	ctx := context.Background()

	buyer, _ := h.seedUser(t, enums.RoleCustomer, 18.52, 73.85)
	seller, _ := h.seedUser(t, enums.RoleRetailer, 18.53, 73.84)
	product := h.seedProduct(t, seller.ID, "50.00", 10)
	h.addToCart(t, buyer.ID, product, 1)

	require.NoError(t, h.conn.Create(&models.Coupon{
		ID:             uuid.New(),
		Code:           "BIGSPEND",
		DiscountType:   enums.DiscountTypeFixed,
		DiscountValue:  decimal.NewFromInt(20),
		MinOrderAmount: decimal.NewFromInt(500),
		IsActive:       true,
	}).Error)

	_, err := h.svc.Checkout(ctx, buyer.ID, enums.RoleCustomer, CheckoutInput{
		DeliveryAddressID: *buyer.ActiveAddressID,
		CouponCode:        "BIGSPEND",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

// serialTx runs write transactions one at a time, the way postgres row
// locks would order them; the requests themselves still race.
type serialTx struct {
	mu    sync.Mutex
	inner *db.Client
}

func (s *serialTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.WithTx(ctx, fn)
}

func TestConcurrentCheckoutsLastUnitOneWinner(t *testing.T) {
	h := setupCheckout(t)

	// sqlite has one writer; a single pooled connection keeps the two
	// goroutines from tripping over shared-cache table locks.
	sqlDB, err := h.conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	buyerA, _ := h.seedUser(t, enums.RoleCustomer, 18.52, 73.85)
	buyerB, _ := h.seedUser(t, enums.RoleCustomer, 18.50, 73.86)
	seller, _ := h.seedUser(t, enums.RoleRetailer, 18.53, 73.84)
	product := h.seedProduct(t, seller.ID, "50.00", 1)
	h.addToCart(t, buyerA.ID, product, 1)
	h.addToCart(t, buyerB.ID, product, 1)

	svc, err := NewService(
		h.carts,
		catalog.NewRepository(h.conn),
		users.NewRepository(h.conn),
		orders.NewRepository(h.conn),
		payments.NewRepository(h.conn),
		h.gateway,
		geo.FeeParams{BaseFee: decimal.NewFromInt(10), PerKmFee: decimal.NewFromInt(1)},
		&serialTx{inner: db.NewFromConn(h.conn)},
		logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard}),
	)
	require.NoError(t, err)

	buyers := []*models.User{buyerA, buyerB}
	errs := make([]error, len(buyers))
	var wg sync.WaitGroup
	for i := range buyers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Checkout(context.Background(), buyers[i].ID, enums.RoleCustomer, CheckoutInput{
				DeliveryAddressID: *buyers[i].ActiveAddressID,
			})
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
		conflicts++
	}
	assert.Equal(t, 1, wins, "exactly one checkout gets the last unit")
	assert.Equal(t, 1, conflicts)
	assert.Zero(t, h.stockOf(t, product.ID))

	var orderCount int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&orderCount).Error)
	assert.EqualValues(t, 1, orderCount)
}

func TestGenerateOrderNumberFormat(t *testing.T) {
	now := time.Date(2026, 8, 29, 14, 30, 15, 0, time.UTC)
	number, err := generateOrderNumber(now)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^ORD-20260829143015-[0-9A-F]{6}$`), number)
}
