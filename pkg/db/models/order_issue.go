package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/pkg/enums"
)

// OrderIssue is a customer-reported problem bound to an order.
type OrderIssue struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	CustomerID  uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	Description string            `gorm:"column:description;not null"`
	Status      enums.IssueStatus `gorm:"column:status;type:text;not null;default:'open'"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
