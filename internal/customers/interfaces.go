package customers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sasabothq/sasabot-backend/pkg/db/models"
)

// Repository defines persistence operations for the customer identity
// table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindByPhone(ctx context.Context, phone string) (*models.Customer, error)
	Create(ctx context.Context, customer *models.Customer) (*models.Customer, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

// Service resolves and mutates customer identities.
type Service interface {
	EnsureByPhone(ctx context.Context, phone string) (*models.Customer, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) error
}
