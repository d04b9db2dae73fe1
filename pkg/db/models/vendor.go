package models

import (
	"time"

	"github.com/google/uuid"
)

// Vendor represents a business owner onboarded over WhatsApp.
type Vendor struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string     `gorm:"column:name;not null"`
	Email        string     `gorm:"column:email;not null;uniqueIndex"`
	PhoneNumber  string     `gorm:"column:phone_number;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Businesses   []Business `gorm:"foreignKey:VendorID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
