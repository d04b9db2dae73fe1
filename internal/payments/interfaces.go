package payments

import (
	"context"

	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/mpesa"
)

// Repository resolves the parties of an order for payment notifications.
type Repository interface {
	FindBusiness(ctx context.Context, id uuid.UUID) (*models.Business, error)
	FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

// Service initiates STK pushes and reconciles their async callbacks.
type Service interface {
	// RequestPayment sends a payment prompt for the order to the payer's
	// phone. The gateway correlation id is persisted on the order before
	// RequestPayment returns.
	RequestPayment(ctx context.Context, business *models.Business, order *models.Order, payerPhone string) error

	// Reconcile applies one raw gateway callback to the matching order.
	// It always returns an acceptance ack; internal failures are logged
	// so the gateway never retries a callback we already received.
	Reconcile(ctx context.Context, raw []byte) mpesa.Ack
}
