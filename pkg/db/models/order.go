package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sasabothq/sasabot-backend/pkg/enums"
)

// Order is the purchase aggregate. CheckoutRequestID is written at
// payment initiation and is the primary correlation key for gateway
// callbacks. Orders are never deleted, only transitioned.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber        string              `gorm:"column:order_number;not null;uniqueIndex"`
	BusinessID         uuid.UUID           `gorm:"column:business_id;type:uuid;not null;index"`
	CustomerID         uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	Status             enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	TotalAmount        decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency           string              `gorm:"column:currency;not null;default:'KES'"`
	CustomizationNotes *string             `gorm:"column:customization_notes"`
	PaymentPhone       *string             `gorm:"column:payment_phone"`
	CheckoutRequestID  *string             `gorm:"column:checkout_request_id;uniqueIndex"`
	MpesaReceipt       *string             `gorm:"column:mpesa_receipt"`
	PaidAt             *time.Time          `gorm:"column:paid_at"`
	Items              []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is a line on an order, priced at order-creation time.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariationID *uuid.UUID      `gorm:"column:variation_id;type:uuid"`
	Name        string          `gorm:"column:name;not null"`
	Quantity    int             `gorm:"column:quantity;not null;default:1"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	TotalPrice  decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
