package onboarding

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sasabothq/sasabot-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns a gorm-backed onboarding repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) CreateVendor(ctx context.Context, vendor *models.Vendor) (*models.Vendor, error) {
	if vendor.ID == uuid.Nil {
		vendor.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(vendor).Error; err != nil {
		return nil, err
	}
	return vendor, nil
}

func (r *repository) CreateBusiness(ctx context.Context, business *models.Business) (*models.Business, error) {
	if business.ID == uuid.Nil {
		business.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(business).Error; err != nil {
		return nil, err
	}
	return business, nil
}

func (r *repository) FindBusinessByWhatsAppNumber(ctx context.Context, number string) (*models.Business, error) {
	var business models.Business
	err := r.db.WithContext(ctx).
		Where("whatsapp_number = ? AND is_active = ?", number, true).
		First(&business).Error
	if err != nil {
		return nil, err
	}
	return &business, nil
}
