package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable catalog entry.
type Product struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BusinessID          uuid.UUID          `gorm:"column:business_id;type:uuid;not null;index"`
	CategoryID          uuid.UUID          `gorm:"column:category_id;type:uuid;not null;index"`
	Name                string             `gorm:"column:name;not null"`
	Description         *string            `gorm:"column:description"`
	Price               decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	Currency            string             `gorm:"column:currency;not null;default:'KES'"`
	IsActive            bool               `gorm:"column:is_active;not null;default:true"`
	HasVariations       bool               `gorm:"column:has_variations;not null;default:false"`
	AllowsCustomization bool               `gorm:"column:allows_customization;not null;default:false"`
	Variations          []ProductVariation `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariation is a priced variant of a product, e.g. a size.
type ProductVariation struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Name      string          `gorm:"column:name;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
