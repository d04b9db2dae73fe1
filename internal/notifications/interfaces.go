package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/pkg/db/models"
)

// Repository loads the parties a notification is addressed between.
type Repository interface {
	FindBusiness(ctx context.Context, id uuid.UUID) (*models.Business, error)
	FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

// Service delivers order lifecycle notifications to customers over
// WhatsApp and records them on the chat transcript.
type Service interface {
	OrderStatusChanged(ctx context.Context, order *models.Order) error
}
