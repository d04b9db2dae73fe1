package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/pkg/enums"
)

// ChatSession groups the message transcript for one customer and one
// business. Audit only, never read for control flow.
type ChatSession struct {
	ID         uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BusinessID uuid.UUID     `gorm:"column:business_id;type:uuid;not null;index:idx_chat_sessions_business_customer,unique"`
	CustomerID uuid.UUID     `gorm:"column:customer_id;type:uuid;not null;index:idx_chat_sessions_business_customer,unique"`
	Messages   []ChatMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// ChatMessage is one appended transcript entry.
type ChatMessage struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID uuid.UUID         `gorm:"column:session_id;type:uuid;not null;index"`
	Sender    enums.SenderType  `gorm:"column:sender;type:text;not null"`
	Type      enums.MessageType `gorm:"column:type;type:text;not null;default:'text'"`
	Body      string            `gorm:"column:body;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}
