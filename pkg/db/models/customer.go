package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a global identity keyed by normalized phone number. The
// same customer can interact with any number of businesses.
type Customer struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PhoneNumber string    `gorm:"column:phone_number;not null;uniqueIndex"`
	Name        *string   `gorm:"column:name"`
	Email       *string   `gorm:"column:email"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
