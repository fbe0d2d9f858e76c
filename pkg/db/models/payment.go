package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// Payment is the gateway-facing intent covering one checkout. Several
// orders can hang off a single payment.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID           uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	TotalAmount       decimal.Decimal     `gorm:"column:total_amount;type:numeric(10,2);not null"`
	Currency          string              `gorm:"column:currency;type:text;not null;default:'INR'"`
	RazorpayOrderID   string              `gorm:"column:razorpay_order_id;type:text;index"`
	RazorpayPaymentID *string             `gorm:"column:razorpay_payment_id;type:text"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
