package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/types"
)

// Address is a saved delivery/pickup location with coordinates.
type Address struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID      `gorm:"column:user_id;type:uuid;not null;index"`
	Label      string         `gorm:"column:label;type:text"`
	Street     string         `gorm:"column:street;not null"`
	Apartment  *string        `gorm:"column:apartment"`
	City       string         `gorm:"column:city;not null"`
	State      string         `gorm:"column:state;not null"`
	PostalCode string         `gorm:"column:postal_code;not null"`
	Country    string         `gorm:"column:country;not null;default:'IN'"`
	Latitude   *float64       `gorm:"column:latitude;type:numeric(9,6)"`
	Longitude  *float64       `gorm:"column:longitude;type:numeric(9,6)"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt  gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// Snapshot freezes the address for embedding in an order.
func (a *Address) Snapshot() types.AddressSnapshot {
	snap := types.AddressSnapshot{
		Label:      a.Label,
		Line1:      a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
	if a.Apartment != nil {
		snap.Line2 = *a.Apartment
	}
	if a.Latitude != nil {
		snap.Lat = *a.Latitude
	}
	if a.Longitude != nil {
		snap.Lng = *a.Longitude
	}
	return snap
}

// HasCoordinates reports whether both latitude and longitude are set.
func (a *Address) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}
