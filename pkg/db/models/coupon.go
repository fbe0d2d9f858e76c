package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// Coupon applies a discount to a checkout. Management endpoints live
// elsewhere; checkout only reads and validates.
type Coupon struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code              string             `gorm:"column:code;type:text;not null;uniqueIndex"`
	DiscountType      enums.DiscountType `gorm:"column:discount_type;type:text;not null"`
	DiscountValue     decimal.Decimal    `gorm:"column:discount_value;type:numeric(10,2);not null"`
	MinOrderAmount    decimal.Decimal    `gorm:"column:min_order_amount;type:numeric(10,2);not null;default:0"`
	MaxDiscountAmount *decimal.Decimal   `gorm:"column:max_discount_amount;type:numeric(10,2)"`
	IsActive          bool               `gorm:"column:is_active;not null;default:true"`
	ValidFrom         *time.Time         `gorm:"column:valid_from"`
	ValidUntil        *time.Time         `gorm:"column:valid_until"`
	UsageLimit        *int               `gorm:"column:usage_limit"`
	UsedCount         int                `gorm:"column:used_count;not null;default:0"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt         gorm.DeletedAt     `gorm:"column:deleted_at;index"`
}

// UsableAt reports whether the coupon can be applied at the given time
// to an order of the given eligible subtotal.
func (c *Coupon) UsableAt(now time.Time, subtotal decimal.Decimal) bool {
	if !c.IsActive {
		return false
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return false
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return false
	}
	return subtotal.GreaterThanOrEqual(c.MinOrderAmount)
}

// DiscountFor computes the discount this coupon grants on a subtotal,
// clamped to the max discount and never exceeding the subtotal itself.
func (c *Coupon) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch c.DiscountType {
	case enums.DiscountTypePercent:
		discount = subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
	case enums.DiscountTypeFixed:
		discount = c.DiscountValue
	default:
		return decimal.Zero
	}
	if c.MaxDiscountAmount != nil && discount.GreaterThan(*c.MaxDiscountAmount) {
		discount = *c.MaxDiscountAmount
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2)
}
