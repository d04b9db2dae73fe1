package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sasabothq/sasabot-backend/pkg/db/models"
)

// Repository defines read operations over the tenant catalog tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBusiness(ctx context.Context, id uuid.UUID) (*models.Business, error)
	ListActiveCategories(ctx context.Context, businessID uuid.UUID) ([]models.Category, error)
	FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
	ListActiveProducts(ctx context.Context, categoryID uuid.UUID) ([]models.Product, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListActiveVariations(ctx context.Context, productID uuid.UUID) ([]models.ProductVariation, error)
	FindVariation(ctx context.Context, id uuid.UUID) (*models.ProductVariation, error)
}
