package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// User represents the canonical identity entity. Account management
// lives elsewhere; the order engine only reads roles and addresses.
type User struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email           string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	FullName        string         `gorm:"column:full_name;not null"`
	Phone           *string        `gorm:"column:phone"`
	Roles           []enums.Role   `gorm:"column:roles;type:jsonb;serializer:json"`
	ActiveRole      enums.Role     `gorm:"column:active_role;type:text;not null;default:'customer'"`
	ActiveAddressID *uuid.UUID     `gorm:"column:active_address_id;type:uuid"`
	IsActive        bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt       gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role enums.Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsSeller reports whether the user holds any seller role.
func (u *User) IsSeller() bool {
	return u.HasRole(enums.RoleRetailer) || u.HasRole(enums.RoleWholesaler)
}
