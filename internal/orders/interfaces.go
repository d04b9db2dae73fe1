package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
)

// Repository provides persistence for orders, order items and order
// issues. Items are owned by their order and only written through it.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Order, error)
	FindLatestPaymentPendingByPhone(ctx context.Context, phone string) (*models.Order, error)
	FindLatestPaymentPendingForCustomer(ctx context.Context, businessID, customerID uuid.UUID) (*models.Order, error)
	FindLatestPendingForCustomer(ctx context.Context, businessID, customerID uuid.UUID) (*models.Order, error)
	ListRecent(ctx context.Context, businessID, customerID uuid.UUID, limit int) ([]models.Order, error)

	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	// UpdateWhereStatus applies updates only when the order is still in
	// the expected status. Returns false when the guard did not match.
	UpdateWhereStatus(ctx context.Context, id uuid.UUID, expected enums.OrderStatus, updates map[string]any) (bool, error)
	// UpdateWherePaymentStatus is the payment-leg equivalent of
	// UpdateWhereStatus.
	UpdateWherePaymentStatus(ctx context.Context, id uuid.UUID, expected enums.PaymentStatus, updates map[string]any) (bool, error)

	CreateIssue(ctx context.Context, issue *models.OrderIssue) (*models.OrderIssue, error)
}

// CreateParams describes a single-item purchase captured from the chat
// flow. Prices are read from the catalog at creation time, never from
// user input.
type CreateParams struct {
	BusinessID uuid.UUID
	CustomerID uuid.UUID
	Product    *models.Product
	Variation  *models.ProductVariation
	Quantity   int
}

// Service owns the order lifecycle. Payment transitions are guarded so
// replayed gateway callbacks and stale user actions cannot double-apply.
type Service interface {
	CreateForProduct(ctx context.Context, params CreateParams) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForCustomer(ctx context.Context, id, businessID, customerID uuid.UUID) (*models.Order, error)
	ListRecent(ctx context.Context, businessID, customerID uuid.UUID, limit int) ([]models.Order, error)

	AddCustomization(ctx context.Context, businessID, customerID uuid.UUID, notes string) (*models.Order, error)
	Cancel(ctx context.Context, id, businessID, customerID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next enums.OrderStatus) (*models.Order, error)

	SetPaymentRequest(ctx context.Context, id uuid.UUID, paymentPhone, checkoutRequestID string) error
	FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Order, error)
	// FindLatestPaymentPendingByPhone matches on the payer phone the
	// gateway echoes back. Only set after a push, so it serves the
	// reconciler's callback fallback, not customer-side lookups.
	FindLatestPaymentPendingByPhone(ctx context.Context, phone string) (*models.Order, error)
	FindLatestPaymentPendingForCustomer(ctx context.Context, businessID, customerID uuid.UUID) (*models.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID, receipt string, paidAt time.Time) (bool, error)
	MarkPaymentFailed(ctx context.Context, id uuid.UUID) (bool, error)

	ReportIssue(ctx context.Context, orderID, customerID uuid.UUID, description string) (*models.OrderIssue, error)
}
