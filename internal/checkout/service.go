package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/internal/cart"
	"github.com/bazario/bazario-backend/internal/catalog"
	"github.com/bazario/bazario-backend/internal/orders"
	"github.com/bazario/bazario-backend/internal/payments"
	"github.com/bazario/bazario-backend/internal/users"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/geo"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/money"
	"github.com/bazario/bazario-backend/pkg/razorpay"
	"github.com/bazario/bazario-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paymentGateway interface {
	CreateOrder(ctx context.Context, params razorpay.CreateOrderParams) (*razorpay.GatewayOrder, error)
	Currency() string
}

// Service assembles a buyer's cart into per-seller orders under one
// payment intent.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, role enums.Role, input CheckoutInput) (*Result, error)
}

// CheckoutInput carries the buyer's checkout request.
type CheckoutInput struct {
	DeliveryAddressID uuid.UUID
	CouponCode        string
}

// Result is the committed outcome: one pending payment and the orders
// it covers. The cart is left intact until the payment is captured.
type Result struct {
	Payment *models.Payment `json:"payment"`
	Orders  []models.Order  `json:"orders"`
}

type service struct {
	carts    cart.Repository
	catalog  catalog.Repository
	users    users.Repository
	orders   orders.Repository
	payments payments.Repository
	gateway  paymentGateway
	fees     geo.FeeParams
	tx       txRunner
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the checkout pipeline.
func NewService(
	carts cart.Repository,
	catalogRepo catalog.Repository,
	usersRepo users.Repository,
	ordersRepo orders.Repository,
	paymentsRepo payments.Repository,
	gateway paymentGateway,
	fees geo.FeeParams,
	tx txRunner,
	logg *logger.Logger,
) (Service, error) {
	if carts == nil || catalogRepo == nil || usersRepo == nil || ordersRepo == nil || paymentsRepo == nil {
		return nil, fmt.Errorf("checkout repositories required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		carts:    carts,
		catalog:  catalogRepo,
		users:    usersRepo,
		orders:   ordersRepo,
		payments: paymentsRepo,
		gateway:  gateway,
		fees:     fees,
		tx:       tx,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// checkoutLine pairs a cart line with its resolved product and unit price.
type checkoutLine struct {
	item      models.CartItem
	product   *models.Product
	unitPrice decimal.Decimal
}

// checkoutGroup is one prospective order: the lines of a single seller
// shipping from a single pickup address.
type checkoutGroup struct {
	sellerID        uuid.UUID
	pickupAddressID *uuid.UUID
	pickup          *models.Address
	lines           []checkoutLine
	subtotal        decimal.Decimal
	discount        decimal.Decimal
}

// Checkout turns the buyer's cart into persisted orders plus a pending
// payment. Everything commits together; any failure rolls the whole
// checkout back.
func (s *service) Checkout(ctx context.Context, userID uuid.UUID, role enums.Role, input CheckoutInput) (*Result, error) {
	deliveryAddr, err := s.users.FindAddressByID(ctx, input.DeliveryAddressID)
	if err != nil {
		return nil, err
	}
	if deliveryAddr.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address does not belong to the buyer")
	}

	buyerCart, err := s.carts.FindByUserID(ctx, userID)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		return nil, err
	}
	if len(buyerCart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	buyerType := enums.BuyerTypeForRole(role)

	groups, err := s.assembleGroups(ctx, buyerCart.Items, buyerType)
	if err != nil {
		return nil, err
	}

	coupon, err := s.applyCoupon(ctx, input.CouponCode, groups)
	if err != nil {
		return nil, err
	}

	deliverySnap := deliveryAddr.Snapshot()
	now := s.now()

	var (
		payment       *models.Payment
		createdOrders []models.Order
	)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		catalogTx := s.catalog.WithTx(tx)
		ordersTx := s.orders.WithTx(tx)
		paymentsTx := s.payments.WithTx(tx)

		// Lock every inventory row up front so concurrent checkouts
		// against the same stock serialize.
		for _, group := range groups {
			for _, line := range group.lines {
				inventory, err := catalogTx.LockInventory(ctx, line.item.ProductID)
				if err != nil {
					return err
				}
				if inventory.StockQuantity < line.item.Quantity {
					return pkgerrors.Newf(pkgerrors.CodeConflict,
						"insufficient stock for %s", line.product.Name)
				}
			}
		}

		grandTotal := decimal.Zero
		createdOrders = createdOrders[:0]

		for _, group := range groups {
			orderNumber, err := reserveOrderNumber(ctx, ordersTx, now)
			if err != nil {
				return err
			}

			orderSubtotal := group.subtotal.Sub(group.discount)
			distance := s.pickupDistance(group.pickup, deliveryAddr)
			fee := geo.DeliveryFee(s.fees, distance, orderSubtotal)
			total := orderSubtotal.Add(fee)

			order := models.Order{
				ID:               uuid.New(),
				OrderNumber:      orderNumber,
				BuyerID:          userID,
				SellerID:         group.sellerID,
				BuyerType:        buyerType,
				OrderStatus:      enums.OrderStatusPending,
				PickupAddressID:  group.pickupAddressID,
				PickupAddress:    pickupSnapshot(group.pickup),
				DeliveryAddress:  deliverySnap,
				OriginalSubtotal: money.Quantize(group.subtotal),
				DiscountAmount:   money.Quantize(group.discount),
				OrderSubtotal:    money.Quantize(orderSubtotal),
				DeliveryFee:      fee,
				OrderTotal:       money.Quantize(total),
			}
			if coupon != nil {
				code := coupon.Code
				order.CouponCode = &code
			}
			if err := ordersTx.Create(ctx, &order); err != nil {
				return err
			}

			items := make([]models.OrderItem, 0, len(group.lines))
			for _, line := range group.lines {
				productID := line.product.ID
				items = append(items, models.OrderItem{
					ID:          uuid.New(),
					OrderID:     order.ID,
					ProductID:   &productID,
					ProductName: line.product.Name,
					SKU:         line.product.SKU,
					ImagePath:   line.product.PrimaryImage(),
					PricePaid:   line.unitPrice,
					Quantity:    line.item.Quantity,
				})
				if err := catalogTx.AdjustStock(ctx, line.product.ID, -line.item.Quantity); err != nil {
					return err
				}
			}
			if err := ordersTx.CreateItems(ctx, items); err != nil {
				return err
			}

			actor := userID
			if err := ordersTx.AppendHistory(ctx, &models.OrderStatusHistory{
				ID:          uuid.New(),
				OrderID:     order.ID,
				Status:      enums.OrderStatusPending,
				UpdatedByID: &actor,
			}); err != nil {
				return err
			}

			order.Items = items
			grandTotal = grandTotal.Add(order.OrderTotal)
			createdOrders = append(createdOrders, order)
		}

		paymentID := uuid.New()
		gatewayOrder, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderParams{
			AmountSubunits: money.Subunits(grandTotal),
			Receipt:        paymentID.String(),
			Notes:          map[string]string{"buyer_id": userID.String()},
		})
		if err != nil {
			return err
		}

		payment = &models.Payment{
			ID:              paymentID,
			BuyerID:         userID,
			Status:          enums.PaymentStatusPending,
			TotalAmount:     money.Quantize(grandTotal),
			Currency:        s.gateway.Currency(),
			RazorpayOrderID: gatewayOrder.ID,
		}
		if err := paymentsTx.Create(ctx, payment); err != nil {
			return err
		}

		for i := range createdOrders {
			order := &createdOrders[i]
			if err := ordersTx.StampPayment(ctx, order.ID, payment.ID, order.OrderTotal); err != nil {
				return err
			}
			order.PaymentID = &payment.ID
			amount := order.OrderTotal
			order.PaymentAmount = &amount
		}

		if coupon != nil {
			if err := catalogTx.IncrementCouponUsage(ctx, coupon.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"buyer_id":    userID.String(),
		"payment_id":  payment.ID.String(),
		"order_count": len(createdOrders),
		"total":       payment.TotalAmount.StringFixed(2),
	}), "checkout completed")

	return &Result{Payment: payment, Orders: createdOrders}, nil
}

// assembleGroups validates each cart line and buckets lines by seller
// and pickup address, pricing every line for the buyer type.
func (s *service) assembleGroups(ctx context.Context, items []models.CartItem, buyerType enums.BuyerType) ([]*checkoutGroup, error) {
	productIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := s.catalog.FindProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	productsByID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		productsByID[products[i].ID] = &products[i]
	}

	addressCache := make(map[uuid.UUID]*models.Address)
	sellerAddressCache := make(map[uuid.UUID]*models.Address)

	groups := make([]*checkoutGroup, 0, 4)
	groupIndex := make(map[string]*checkoutGroup)

	for _, item := range items {
		product, ok := productsByID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart references an unavailable product")
		}
		if !product.IsActive {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "product %s is no longer available", product.Name)
		}
		if product.SellerType.BuyerType() != buyerType {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "product %s is not sold to your role", product.Name)
		}

		tier := product.PricingFor(buyerType, item.Quantity)
		if tier == nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "no pricing available for %s", product.Name)
		}

		pickup, err := s.resolvePickup(ctx, product, addressCache, sellerAddressCache)
		if err != nil {
			return nil, err
		}

		key := product.SellerID.String()
		var pickupID *uuid.UUID
		if pickup != nil {
			id := pickup.ID
			pickupID = &id
			key += "|" + id.String()
		}

		group, ok := groupIndex[key]
		if !ok {
			group = &checkoutGroup{
				sellerID:        product.SellerID,
				pickupAddressID: pickupID,
				pickup:          pickup,
				subtotal:        decimal.Zero,
				discount:        decimal.Zero,
			}
			groupIndex[key] = group
			groups = append(groups, group)
		}

		lineTotal := tier.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		group.subtotal = group.subtotal.Add(lineTotal)
		group.lines = append(group.lines, checkoutLine{
			item:      item,
			product:   product,
			unitPrice: tier.Price,
		})
	}

	return groups, nil
}

// resolvePickup prefers the product's own address, falling back to the
// seller's active address. A seller with no usable address yields nil
// and the order ships with only the base delivery fee.
func (s *service) resolvePickup(ctx context.Context, product *models.Product, addresses, sellerAddresses map[uuid.UUID]*models.Address) (*models.Address, error) {
	if product.AddressID != nil {
		if cached, ok := addresses[*product.AddressID]; ok {
			return cached, nil
		}
		addr, err := s.users.FindAddressByID(ctx, *product.AddressID)
		if err != nil {
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
				return nil, err
			}
		} else {
			addresses[addr.ID] = addr
			return addr, nil
		}
	}

	if cached, ok := sellerAddresses[product.SellerID]; ok {
		return cached, nil
	}
	seller, err := s.users.FindByID(ctx, product.SellerID)
	if err != nil {
		return nil, err
	}
	addr, err := s.users.FindActiveAddress(ctx, seller)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			sellerAddresses[product.SellerID] = nil
			return nil, nil
		}
		return nil, err
	}
	sellerAddresses[product.SellerID] = addr
	return addr, nil
}

// applyCoupon validates the coupon against the combined pre-discount
// subtotal and allocates the discount across groups proportionally,
// with the last group absorbing the rounding remainder.
func (s *service) applyCoupon(ctx context.Context, code string, groups []*checkoutGroup) (*models.Coupon, error) {
	if code == "" {
		return nil, nil
	}

	coupon, err := s.catalog.FindCouponByCode(ctx, code)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon code")
		}
		return nil, err
	}

	total := decimal.Zero
	for _, group := range groups {
		total = total.Add(group.subtotal)
	}
	if !coupon.UsableAt(s.now(), total) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon cannot be applied to this order")
	}

	discount := coupon.DiscountFor(total)
	if discount.IsZero() || total.IsZero() {
		return coupon, nil
	}

	allocated := decimal.Zero
	for i, group := range groups {
		var share decimal.Decimal
		if i == len(groups)-1 {
			share = discount.Sub(allocated)
		} else {
			share = money.Quantize(discount.Mul(group.subtotal).Div(total))
		}
		if share.GreaterThan(group.subtotal) {
			share = group.subtotal
		}
		group.discount = share
		allocated = allocated.Add(share)
	}

	return coupon, nil
}

// pickupDistance returns the haversine distance in kilometers, or zero
// when either endpoint lacks coordinates.
func (s *service) pickupDistance(pickup, delivery *models.Address) float64 {
	if pickup == nil || !pickup.HasCoordinates() || !delivery.HasCoordinates() {
		return 0
	}
	return geo.DistanceKm(
		geo.Point{Lat: *pickup.Latitude, Lng: *pickup.Longitude},
		geo.Point{Lat: *delivery.Latitude, Lng: *delivery.Longitude},
	)
}

func pickupSnapshot(pickup *models.Address) types.AddressSnapshot {
	if pickup == nil {
		return types.AddressSnapshot{Line1: "unspecified"}
	}
	return pickup.Snapshot()
}
