// Package bulk sends one-off vendor broadcasts to a business's
// customers over WhatsApp.
package bulk

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/sasabothq/sasabot-backend/internal/catalog"
	"github.com/sasabothq/sasabot-backend/internal/chat"
	"github.com/sasabothq/sasabot-backend/internal/customers"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
	pkgerrors "github.com/sasabothq/sasabot-backend/pkg/errors"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
	"github.com/sasabothq/sasabot-backend/pkg/phone"
	"github.com/sasabothq/sasabot-backend/pkg/whatsapp"
)

// Result summarizes one broadcast run.
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Service delivers a message to many recipients synchronously.
// Individual delivery failures are aggregated, never fatal to the run.
type Service interface {
	// Broadcast sends the message to the given phone numbers. With no
	// explicit recipients it targets every customer who has chatted
	// with the business.
	Broadcast(ctx context.Context, businessID uuid.UUID, phones []string, message string) (*Result, error)
}

type service struct {
	catalog   catalog.Repository
	chat      chat.Service
	customers customers.Repository
	sender    whatsapp.Sender
	logger    *logger.Logger
}

// NewService builds the broadcast service.
func NewService(
	catalogRepo catalog.Repository,
	chatSvc chat.Service,
	customersRepo customers.Repository,
	sender whatsapp.Sender,
	logg *logger.Logger,
) (Service, error) {
	if catalogRepo == nil {
		return nil, errors.New("catalog repository is required")
	}
	if chatSvc == nil {
		return nil, errors.New("chat service is required")
	}
	if customersRepo == nil {
		return nil, errors.New("customers repository is required")
	}
	if sender == nil {
		return nil, errors.New("whatsapp sender is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &service{
		catalog:   catalogRepo,
		chat:      chatSvc,
		customers: customersRepo,
		sender:    sender,
		logger:    logg,
	}, nil
}

func (s *service) Broadcast(ctx context.Context, businessID uuid.UUID, phones []string, message string) (*Result, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "broadcast message is required")
	}

	business, err := s.catalog.FindBusiness(ctx, businessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "business not found")
	}
	if !business.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "business is not active")
	}

	recipients, err := s.resolveRecipients(ctx, businessID, phones)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "broadcast has no recipients")
	}

	creds := s.sender.CredentialsFor(business.WhatsAppAPIToken, business.WhatsAppPhoneID)
	ctx = s.logger.WithBusinessID(ctx, businessID.String())

	result := &Result{}
	var deliveryErrs error
	for _, recipient := range recipients {
		if err := s.sender.SendText(ctx, creds, recipient, message); err != nil {
			result.Failed++
			deliveryErrs = multierr.Append(deliveryErrs, err)
			continue
		}
		result.Sent++
		s.transcribe(ctx, businessID, recipient, message)
	}

	if deliveryErrs != nil {
		s.logger.Error(ctx, "broadcast finished with delivery failures", deliveryErrs)
	}
	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"sent":   result.Sent,
		"failed": result.Failed,
	}), "broadcast complete")
	return result, nil
}

// resolveRecipients validates explicit phones or falls back to the
// business's chat customers. Duplicates collapse to one send.
func (s *service) resolveRecipients(ctx context.Context, businessID uuid.UUID, phones []string) ([]string, error) {
	seen := make(map[string]struct{})
	var recipients []string

	add := func(raw string) {
		normalized := phone.Normalize(raw)
		if normalized == "" {
			return
		}
		if _, ok := seen[normalized]; ok {
			return
		}
		seen[normalized] = struct{}{}
		recipients = append(recipients, normalized)
	}

	if len(phones) > 0 {
		for _, raw := range phones {
			add(raw)
		}
		return recipients, nil
	}

	customerIDs, err := s.chat.CustomersForBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	for _, id := range customerIDs {
		customer, err := s.customers.FindByID(ctx, id)
		if err != nil {
			s.logger.Warn(s.logger.WithField(ctx, "customer_id", id.String()),
				"skipping unresolvable broadcast recipient")
			continue
		}
		add(customer.PhoneNumber)
	}
	return recipients, nil
}

// transcribe records the broadcast in the recipient's chat history when
// the recipient maps to a known customer.
func (s *service) transcribe(ctx context.Context, businessID uuid.UUID, recipientPhone, message string) {
	customer, err := s.customers.FindByPhone(ctx, recipientPhone)
	if err != nil {
		return
	}
	if err := s.chat.Record(ctx, businessID, customer.ID, enums.SenderBot, enums.MessageTypeText, message); err != nil {
		s.logger.Error(ctx, "failed to record broadcast message", err)
	}
}
