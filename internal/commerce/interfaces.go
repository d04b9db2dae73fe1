package commerce

import (
	"context"

	"github.com/sasabothq/sasabot-backend/pkg/db/models"
)

// PaymentInitiator pushes a payment request to the customer's handset
// and persists the gateway correlation id on the order before returning.
type PaymentInitiator interface {
	RequestPayment(ctx context.Context, business *models.Business, order *models.Order, payerPhone string) error
}

// Engine drives the business-scoped customer flow. Callers hold the
// per-(phone, business) conversation lock.
type Engine interface {
	Greeting(ctx context.Context, business *models.Business, customer *models.Customer) error
	HandleButton(ctx context.Context, business *models.Business, customer *models.Customer, buttonID string) error
	// HandleText consumes stateful input, greetings and payment-phone
	// replies. It reports false when the text is free-form chat the
	// caller should route to the responder instead.
	HandleText(ctx context.Context, business *models.Business, customer *models.Customer, text string) (bool, error)
}
