package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// PaymentSettlement records one payout batch to a seller or delivery
// partner. Net amount is gross minus platform commission.
type PaymentSettlement struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	UserType         enums.PayeeType        `gorm:"column:user_type;type:text;not null"`
	Amount           decimal.Decimal        `gorm:"column:amount;type:numeric(10,2);not null"`
	CommissionAmount decimal.Decimal        `gorm:"column:commission_amount;type:numeric(10,2);not null"`
	NetAmount        decimal.Decimal        `gorm:"column:net_amount;type:numeric(10,2);not null"`
	SettlementDate   time.Time              `gorm:"column:settlement_date;not null"`
	Status           enums.SettlementStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Notes            *string                `gorm:"column:notes"`
	OrderIDs         []uuid.UUID            `gorm:"column:order_ids;type:jsonb;serializer:json"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt        gorm.DeletedAt         `gorm:"column:deleted_at;index"`
}
