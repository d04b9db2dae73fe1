package onboarding

import (
	"context"

	"gorm.io/gorm"

	"github.com/sasabothq/sasabot-backend/pkg/db/models"
)

// Repository persists the Vendor and Business pair provisioned at the
// end of the flow.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateVendor(ctx context.Context, vendor *models.Vendor) (*models.Vendor, error)
	CreateBusiness(ctx context.Context, business *models.Business) (*models.Business, error)
	FindBusinessByWhatsAppNumber(ctx context.Context, number string) (*models.Business, error)
}

// Input is one inbound turn. Exactly one of Text or ButtonID is set.
type Input struct {
	Text     string
	ButtonID string
}

// Engine drives the platform-scope registration flow. Callers hold the
// per-phone conversation lock for Start and Resume.
type Engine interface {
	Welcome(ctx context.Context, phone string) error
	About(ctx context.Context, phone string) error
	FAQs(ctx context.Context, phone string) error
	DashboardLogin(ctx context.Context, phone string) error
	Start(ctx context.Context, phone string) error
	Resume(ctx context.Context, phone string, input Input) error
	InProgress(ctx context.Context, phone string) (bool, error)
}
