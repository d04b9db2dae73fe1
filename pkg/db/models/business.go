package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/pkg/enums"
)

// Business is a tenant. WhatsAppAPIToken/WhatsAppPhoneID, when set,
// override the platform-wide Graph credentials for this tenant's sends.
type Business struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID           uuid.UUID              `gorm:"column:vendor_id;type:uuid;not null"`
	Name               string                 `gorm:"column:name;not null"`
	Description        string                 `gorm:"column:description;not null"`
	WhatsAppNumber     string                 `gorm:"column:whatsapp_number;not null"`
	Email              *string                `gorm:"column:email"`
	Category           enums.BusinessCategory `gorm:"column:category;type:text;not null"`
	WhatsAppAPIToken   *string                `gorm:"column:whatsapp_api_token"`
	WhatsAppPhoneID    *string                `gorm:"column:whatsapp_phone_id"`
	CustomInstructions *string                `gorm:"column:custom_instructions"`
	IsActive           bool                   `gorm:"column:is_active;not null;default:true"`
	Categories         []Category             `gorm:"foreignKey:BusinessID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
