package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sasabothq/sasabot-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindBusiness(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	var business models.Business
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&business).Error
	if err != nil {
		return nil, err
	}
	return &business, nil
}

func (r *repository) ListActiveCategories(ctx context.Context, businessID uuid.UUID) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND is_active = ?", businessID, true).
		Order("name ASC").
		Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repository) FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *repository) ListActiveProducts(ctx context.Context, categoryID uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("category_id = ? AND is_active = ?", categoryID, true).
		Order("name ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListActiveVariations(ctx context.Context, productID uuid.UUID) ([]models.ProductVariation, error) {
	var variations []models.ProductVariation
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_active = ?", productID, true).
		Order("name ASC").
		Find(&variations).Error
	if err != nil {
		return nil, err
	}
	return variations, nil
}

func (r *repository) FindVariation(ctx context.Context, id uuid.UUID) (*models.ProductVariation, error) {
	var variation models.ProductVariation
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&variation).Error
	if err != nil {
		return nil, err
	}
	return &variation, nil
}
