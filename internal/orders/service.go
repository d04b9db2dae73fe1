package orders

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sasabothq/sasabot-backend/pkg/db"
	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
	pkgerrors "github.com/sasabothq/sasabot-backend/pkg/errors"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
)

const orderNumberAttempts = 5

type service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService builds the order service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders: repository is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("orders: logger is required")
	}
	return &service{repo: repo, logger: logg}, nil
}

func generateOrderNumber() string {
	return fmt.Sprintf("ORD%06d", rand.IntN(900000)+100000)
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

func (s *service) CreateForProduct(ctx context.Context, params CreateParams) (*models.Order, error) {
	if params.Product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is required")
	}
	if !params.Product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is no longer available")
	}
	if params.BusinessID == uuid.Nil || params.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business and customer are required")
	}
	if params.Product.BusinessID != params.BusinessID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product does not belong to this business")
	}
	if params.Variation != nil && params.Variation.ProductID != params.Product.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variation does not belong to this product")
	}

	quantity := params.Quantity
	if quantity < 1 {
		quantity = 1
	}

	unitPrice := params.Product.Price
	name := params.Product.Name
	var variationID *uuid.UUID
	if params.Variation != nil {
		unitPrice = params.Variation.Price
		name = fmt.Sprintf("%s (%s)", params.Product.Name, params.Variation.Name)
		id := params.Variation.ID
		variationID = &id
	}

	item := models.OrderItem{
		ProductID:   params.Product.ID,
		VariationID: variationID,
		Name:        name,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		TotalPrice:  unitPrice.Mul(decimalFromInt(quantity)),
	}

	order := &models.Order{
		BusinessID:    params.BusinessID,
		CustomerID:    params.CustomerID,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		TotalAmount:   item.TotalPrice,
		Currency:      params.Product.Currency,
		Items:         []models.OrderItem{item},
	}
	if order.Currency == "" {
		order.Currency = "KES"
	}

	var createErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber = generateOrderNumber()
		var created *models.Order
		created, createErr = s.repo.Create(ctx, order)
		if createErr == nil {
			return created, nil
		}
		if !db.IsUniqueViolation(createErr) {
			break
		}
		order.ID = uuid.Nil
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, createErr, "failed to create order")
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) FindForCustomer(ctx context.Context, id, businessID, customerID uuid.UUID) (*models.Order, error) {
	order, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.BusinessID != businessID || order.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	return order, nil
}

func (s *service) ListRecent(ctx context.Context, businessID, customerID uuid.UUID, limit int) ([]models.Order, error) {
	if limit < 1 {
		limit = 10
	}
	return s.repo.ListRecent(ctx, businessID, customerID, limit)
}

func (s *service) AddCustomization(ctx context.Context, businessID, customerID uuid.UUID, notes string) (*models.Order, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customization notes are required")
	}
	order, err := s.repo.FindLatestPendingForCustomer(ctx, businessID, customerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no pending order to customize")
		}
		return nil, err
	}
	if err := s.repo.Update(ctx, order.ID, map[string]any{"customization_notes": notes}); err != nil {
		return nil, err
	}
	order.CustomizationNotes = &notes
	return order, nil
}

func (s *service) Cancel(ctx context.Context, id, businessID, customerID uuid.UUID) (bool, error) {
	if _, err := s.FindForCustomer(ctx, id, businessID, customerID); err != nil {
		return false, err
	}
	return s.repo.UpdateWhereStatus(ctx, id, enums.OrderStatusPending, map[string]any{
		"status": enums.OrderStatusCancelled,
	})
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	order, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is already %s", order.Status))
	}
	applied, err := s.repo.UpdateWhereStatus(ctx, id, order.Status, map[string]any{"status": next})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
	}
	order.Status = next
	return order, nil
}

func (s *service) SetPaymentRequest(ctx context.Context, id uuid.UUID, paymentPhone, checkoutRequestID string) error {
	if checkoutRequestID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout request id is required")
	}
	return s.repo.Update(ctx, id, map[string]any{
		"payment_phone":       paymentPhone,
		"checkout_request_id": checkoutRequestID,
	})
}

func (s *service) FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Order, error) {
	order, err := s.repo.FindByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for checkout request")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) FindLatestPaymentPendingByPhone(ctx context.Context, phone string) (*models.Order, error) {
	order, err := s.repo.FindLatestPaymentPendingByPhone(ctx, phone)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment-pending order for phone")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) FindLatestPaymentPendingForCustomer(ctx context.Context, businessID, customerID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindLatestPaymentPendingForCustomer(ctx, businessID, customerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment-pending order for customer")
		}
		return nil, err
	}
	return order, nil
}

// MarkPaid transitions the payment leg to paid exactly once. A replayed
// callback for an already-paid order returns applied=false with no error.
func (s *service) MarkPaid(ctx context.Context, id uuid.UUID, receipt string, paidAt time.Time) (bool, error) {
	applied, err := s.repo.UpdateWherePaymentStatus(ctx, id, enums.PaymentStatusPending, map[string]any{
		"payment_status": enums.PaymentStatusPaid,
		"status":         enums.OrderStatusProcessing,
		"mpesa_receipt":  receipt,
		"paid_at":        paidAt.UTC(),
	})
	if err != nil {
		return false, err
	}
	if !applied {
		s.logger.Warn(s.logger.WithOrderID(ctx, id.String()), "duplicate paid transition ignored")
	}
	return applied, nil
}

func (s *service) MarkPaymentFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.UpdateWherePaymentStatus(ctx, id, enums.PaymentStatusPending, map[string]any{
		"payment_status": enums.PaymentStatusFailed,
		"status":         enums.OrderStatusCancelled,
	})
}

func (s *service) ReportIssue(ctx context.Context, orderID, customerID uuid.UUID, description string) (*models.OrderIssue, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "issue description is required")
	}
	order, err := s.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	return s.repo.CreateIssue(ctx, &models.OrderIssue{
		OrderID:     orderID,
		CustomerID:  customerID,
		Description: description,
		Status:      enums.IssueStatusOpen,
	})
}
