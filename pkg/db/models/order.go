package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/enums"
	"github.com/bazario/bazario-backend/pkg/types"
)

// Order is one buyer-seller slice of a checkout. A multi-seller cart
// produces one order per seller under a shared payment.
type Order struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber       string                `gorm:"column:order_number;type:text;not null;uniqueIndex"`
	BuyerID           uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID          uuid.UUID             `gorm:"column:seller_id;type:uuid;not null;index"`
	BuyerType         enums.BuyerType       `gorm:"column:buyer_type;type:text;not null"`
	OrderStatus       enums.OrderStatus     `gorm:"column:order_status;type:text;not null;default:'pending';index"`
	PickupAddressID   *uuid.UUID            `gorm:"column:pickup_address_id;type:uuid"`
	PickupAddress     types.AddressSnapshot `gorm:"column:pickup_address;type:jsonb;serializer:json"`
	DeliveryAddress   types.AddressSnapshot `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	DeliveryPartnerID *uuid.UUID            `gorm:"column:delivery_partner_id;type:uuid;index"`
	OriginalSubtotal  decimal.Decimal       `gorm:"column:original_subtotal;type:numeric(10,2);not null"`
	DiscountAmount    decimal.Decimal       `gorm:"column:discount_amount;type:numeric(10,2);not null;default:0"`
	OrderSubtotal     decimal.Decimal       `gorm:"column:order_subtotal;type:numeric(10,2);not null"`
	DeliveryFee       decimal.Decimal       `gorm:"column:delivery_fee;type:numeric(10,2);not null"`
	OrderTotal        decimal.Decimal       `gorm:"column:order_total;type:numeric(10,2);not null"`
	CouponCode        *string               `gorm:"column:coupon_code;type:text"`
	PaymentID         *uuid.UUID            `gorm:"column:payment_id;type:uuid;index"`
	PaymentAmount     *decimal.Decimal      `gorm:"column:payment_amount;type:numeric(10,2)"`
	SettlementID      *uuid.UUID            `gorm:"column:settlement_id;type:uuid;index"`
	Items             []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory     []OrderStatusHistory  `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt         gorm.DeletedAt        `gorm:"column:deleted_at;index"`
}

// IsSettled reports whether the order is already part of a settlement.
func (o *Order) IsSettled() bool {
	return o.SettlementID != nil
}

// OrderItem is a frozen product snapshot. Catalog edits after checkout
// never rewrite it.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	ProductName string          `gorm:"column:product_name;not null"`
	SKU         string          `gorm:"column:sku;type:text"`
	ImagePath   string          `gorm:"column:image_path;type:text"`
	PricePaid   decimal.Decimal `gorm:"column:price_paid;type:numeric(10,2);not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// OrderStatusHistory is an append-only audit trail of status changes.
type OrderStatusHistory struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status      enums.OrderStatus `gorm:"column:status;type:text;not null"`
	UpdatedByID *uuid.UUID        `gorm:"column:updated_by_id;type:uuid"`
	Notes       *string           `gorm:"column:notes"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}
