package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/pkg/enums"
	"github.com/sasabothq/sasabot-backend/pkg/types"
)

// ConversationState records what step a phone number is on for a flow
// scope. BusinessID is nil for the platform onboarding scope. At most
// one live record per (phone, scope); the store enforces this under a
// per-key lock rather than a partial unique index.
type ConversationState struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PhoneNumber string                 `gorm:"column:phone_number;not null;index:idx_conversation_states_key"`
	BusinessID  *uuid.UUID             `gorm:"column:business_id;type:uuid;index:idx_conversation_states_key"`
	CurrentStep enums.ConversationStep `gorm:"column:current_step;type:text;not null"`
	PendingData types.JSONMap          `gorm:"column:pending_data;type:jsonb;serializer:json"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
