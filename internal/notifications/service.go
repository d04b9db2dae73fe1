// Package notifications delivers order lifecycle updates to customers
// over WhatsApp, using the owning business's credentials.
package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/sasabothq/sasabot-backend/internal/chat"
	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
	pkgerrors "github.com/sasabothq/sasabot-backend/pkg/errors"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
	"github.com/sasabothq/sasabot-backend/pkg/whatsapp"
)

type service struct {
	repo   Repository
	chat   chat.Service
	sender whatsapp.Sender
	logger *logger.Logger
}

// NewService builds the customer notification service.
func NewService(repo Repository, chatSvc chat.Service, sender whatsapp.Sender, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.New("notifications repository is required")
	}
	if chatSvc == nil {
		return nil, errors.New("chat service is required")
	}
	if sender == nil {
		return nil, errors.New("whatsapp sender is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &service{repo: repo, chat: chatSvc, sender: sender, logger: logg}, nil
}

func (s *service) OrderStatusChanged(ctx context.Context, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	ctx = s.logger.WithOrderID(ctx, order.ID.String())

	business, err := s.repo.FindBusiness(ctx, order.BusinessID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business for notification")
	}
	customer, err := s.repo.FindCustomer(ctx, order.CustomerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer for notification")
	}

	body := statusMessage(order)
	creds := s.sender.CredentialsFor(business.WhatsAppAPIToken, business.WhatsAppPhoneID)
	if err := s.sender.SendText(ctx, creds, customer.PhoneNumber, body); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deliver status notification")
	}
	if err := s.chat.Record(ctx, business.ID, customer.ID, enums.SenderBot, enums.MessageTypeText, body); err != nil {
		s.logger.Error(ctx, "failed to record status notification", err)
	}
	return nil
}

func statusMessage(order *models.Order) string {
	switch order.Status {
	case enums.OrderStatusProcessing:
		return fmt.Sprintf("Good news! Your order %s is now being processed.", order.OrderNumber)
	case enums.OrderStatusShipped:
		return fmt.Sprintf("Your order %s has been shipped and is on its way.", order.OrderNumber)
	case enums.OrderStatusDelivered:
		return fmt.Sprintf("Your order %s has been delivered. Thank you for shopping with us!", order.OrderNumber)
	case enums.OrderStatusCompleted:
		return fmt.Sprintf("Your order %s is complete. We hope to see you again soon!", order.OrderNumber)
	case enums.OrderStatusCancelled:
		return fmt.Sprintf("Your order %s has been cancelled. Contact us if this was a mistake.", order.OrderNumber)
	}
	return fmt.Sprintf("Update on your order %s: status is now %s.", order.OrderNumber, order.Status)
}
