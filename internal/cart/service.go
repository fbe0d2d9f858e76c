package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/internal/catalog"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes cart operations scoped to the acting buyer.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID, role enums.Role) (*CartView, error)
	AddItem(ctx context.Context, userID uuid.UUID, role enums.Role, input AddItemInput) (*CartView, error)
	UpdateItem(ctx context.Context, userID uuid.UUID, role enums.Role, itemID uuid.UUID, quantity int) (*CartView, error)
	RemoveItem(ctx context.Context, userID uuid.UUID, role enums.Role, itemID uuid.UUID) (*CartView, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo    Repository
	catalog catalog.Repository
	tx      txRunner
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, catalogRepo catalog.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, catalog: catalogRepo, tx: tx}, nil
}

// AddItemInput captures the payload for adding a product to the cart.
type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CartView is the rendered cart returned to clients: stored lines joined
// with live product data and buyer-tier pricing.
type CartView struct {
	CartID   uuid.UUID      `json:"cart_id"`
	Items    []CartItemView `json:"items"`
	Subtotal string         `json:"subtotal"`
}

// CartItemView is one rendered cart line.
type CartItemView struct {
	ItemID       uuid.UUID `json:"item_id"`
	ProductID    uuid.UUID `json:"product_id"`
	SellerID     uuid.UUID `json:"seller_id"`
	ProductName  string    `json:"product_name"`
	ImagePath    string    `json:"image_path,omitempty"`
	Quantity     int       `json:"quantity"`
	UnitPrice    *string   `json:"unit_price,omitempty"`
	LineSubtotal *string   `json:"line_subtotal,omitempty"`
	InStock      int       `json:"in_stock"`
}

// AddItem inserts or merges a cart line. Quantity is capped at the
// available stock; a product already in the cart has its quantity
// increased instead of duplicating the line.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, role enums.Role, input AddItemInput) (*CartView, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := s.catalog.FindProductByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	buyerType := enums.BuyerTypeForRole(role)
	if product.SellerType.BuyerType() != buyerType {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product is not sold to your role")
	}

	stock := 0
	if product.Inventory != nil {
		stock = product.Inventory.StockQuantity
	}
	if stock < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is out of stock")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindOrCreate(ctx, userID)
		if err != nil {
			return err
		}

		existing, err := repo.FindItemByProduct(ctx, cart.ID, product.ID)
		if err != nil {
			return err
		}

		if existing != nil {
			quantity := existing.Quantity + input.Quantity
			if quantity > stock {
				quantity = stock
			}
			return repo.UpdateItemQuantity(ctx, existing.ID, quantity)
		}

		quantity := input.Quantity
		if quantity > stock {
			quantity = stock
		}
		return repo.CreateItem(ctx, &models.CartItem{
			ID:        uuid.New(),
			CartID:    cart.ID,
			ProductID: product.ID,
			SellerID:  product.SellerID,
			Quantity:  quantity,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.GetCart(ctx, userID, role)
}

// UpdateItem sets a line's quantity, capped at available stock.
func (s *service) UpdateItem(ctx context.Context, userID uuid.UUID, role enums.Role, itemID uuid.UUID, quantity int) (*CartView, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	cart, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, err
	}

	product, err := s.catalog.FindProductByID(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	stock := 0
	if product.Inventory != nil {
		stock = product.Inventory.StockQuantity
	}
	if quantity > stock {
		quantity = stock
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is out of stock")
	}

	if err := s.repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID, role)
}

// RemoveItem deletes a line from the cart.
func (s *service) RemoveItem(ctx context.Context, userID uuid.UUID, role enums.Role, itemID uuid.UUID) (*CartView, error) {
	cart, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID, role)
}

// ClearCart removes every line from the user's cart.
func (s *service) ClearCart(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil
		}
		return err
	}
	return s.repo.DeleteItems(ctx, cart.ID)
}

// GetCart renders the cart with live product data. An absent cart is an
// empty cart.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID, role enums.Role) (*CartView, error) {
	cart, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return &CartView{Items: []CartItemView{}, Subtotal: "0"}, nil
		}
		return nil, err
	}

	productIDs := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := s.catalog.FindProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	buyerType := enums.BuyerTypeForRole(role)
	view := &CartView{CartID: cart.ID, Items: make([]CartItemView, 0, len(cart.Items))}
	subtotal := decimal.Zero

	for _, item := range cart.Items {
		line := CartItemView{
			ItemID:    item.ID,
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			Quantity:  item.Quantity,
		}
		if product, ok := byID[item.ProductID]; ok {
			line.ProductName = product.Name
			line.ImagePath = product.PrimaryImage()
			if product.Inventory != nil {
				line.InStock = product.Inventory.StockQuantity
			}
			if tier := product.PricingFor(buyerType, item.Quantity); tier != nil {
				unit := tier.Price.StringFixed(2)
				lineTotal := tier.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
				lineStr := lineTotal.StringFixed(2)
				line.UnitPrice = &unit
				line.LineSubtotal = &lineStr
				subtotal = subtotal.Add(lineTotal)
			}
		}
		view.Items = append(view.Items, line)
	}

	view.Subtotal = subtotal.StringFixed(2)
	return view, nil
}
