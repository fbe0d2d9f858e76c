package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// Product is a sellable catalog entry owned by a retailer or wholesaler.
type Product struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	SellerID     uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	SellerType   enums.SellerType  `gorm:"column:seller_type;type:text;not null"`
	Name         string            `gorm:"column:name;not null"`
	SKU          string            `gorm:"column:sku;type:text"`
	Description  *string           `gorm:"column:description"`
	AddressID    *uuid.UUID        `gorm:"column:address_id;type:uuid"`
	Images       []string          `gorm:"column:images;type:jsonb;serializer:json"`
	IsActive     bool              `gorm:"column:is_active;not null;default:true"`
	PricingTiers []ProductPricing  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Inventory    *ProductInventory `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt    gorm.DeletedAt    `gorm:"column:deleted_at;index"`
}

// PrimaryImage returns the first image path, if any.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// PricingFor returns the active pricing tier matching the buyer type and
// quantity, or nil when the product is not priced for that buyer.
func (p *Product) PricingFor(buyerType enums.BuyerType, quantity int) *ProductPricing {
	for i := range p.PricingTiers {
		tier := &p.PricingTiers[i]
		if !tier.IsActive || tier.BuyerType != buyerType {
			continue
		}
		if quantity < tier.MinQuantity {
			continue
		}
		if tier.MaxQuantity != nil && quantity > *tier.MaxQuantity {
			continue
		}
		return tier
	}
	return nil
}

// ProductPricing prices a product for one buyer type over a quantity band.
type ProductPricing struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	BuyerType   enums.BuyerType `gorm:"column:buyer_type;type:text;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	MinQuantity int             `gorm:"column:min_quantity;not null;default:1"`
	MaxQuantity *int            `gorm:"column:max_quantity"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductInventory tracks sellable stock per product.
type ProductInventory struct {
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	StockQuantity     int       `gorm:"column:stock_quantity;not null;default:0"`
	LowStockThreshold int       `gorm:"column:low_stock_threshold;not null;default:0"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
