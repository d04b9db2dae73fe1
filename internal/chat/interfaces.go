package chat

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
)

// Repository persists chat sessions and their messages.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSession(ctx context.Context, businessID, customerID uuid.UUID) (*models.ChatSession, error)
	CreateSession(ctx context.Context, session *models.ChatSession) (*models.ChatSession, error)
	AppendMessage(ctx context.Context, message *models.ChatMessage) error
	ListMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.ChatMessage, error)
	ListSessionsForBusiness(ctx context.Context, businessID uuid.UUID) ([]models.ChatSession, error)
}

// Service keeps the per-business transcript. Recording is best effort
// from the caller's perspective and never blocks flow progression.
type Service interface {
	EnsureSession(ctx context.Context, businessID, customerID uuid.UUID) (*models.ChatSession, error)
	Record(ctx context.Context, businessID, customerID uuid.UUID, sender enums.SenderType, msgType enums.MessageType, body string) error
	History(ctx context.Context, businessID, customerID uuid.UUID, limit int) ([]models.ChatMessage, error)
	CustomersForBusiness(ctx context.Context, businessID uuid.UUID) ([]uuid.UUID, error)
}
