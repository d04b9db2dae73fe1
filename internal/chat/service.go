package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/pkg/db"
	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
	pkgerrors "github.com/sasabothq/sasabot-backend/pkg/errors"
)

type service struct {
	repo Repository
}

// NewService builds the chat transcript service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("chat: repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) EnsureSession(ctx context.Context, businessID, customerID uuid.UUID) (*models.ChatSession, error) {
	session, err := s.repo.FindSession(ctx, businessID, customerID)
	if err == nil {
		return session, nil
	}
	if !db.IsNotFound(err) {
		return nil, err
	}

	created, createErr := s.repo.CreateSession(ctx, &models.ChatSession{
		BusinessID: businessID,
		CustomerID: customerID,
	})
	if createErr == nil {
		return created, nil
	}
	// Lost a create race to a concurrent webhook. The winner's row is
	// the session.
	if db.IsUniqueViolation(createErr) {
		return s.repo.FindSession(ctx, businessID, customerID)
	}
	return nil, createErr
}

func (s *service) Record(ctx context.Context, businessID, customerID uuid.UUID, sender enums.SenderType, msgType enums.MessageType, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	if !sender.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid sender type")
	}
	if !msgType.IsValid() {
		msgType = enums.MessageTypeText
	}

	session, err := s.EnsureSession(ctx, businessID, customerID)
	if err != nil {
		return err
	}
	return s.repo.AppendMessage(ctx, &models.ChatMessage{
		SessionID: session.ID,
		Sender:    sender,
		Type:      msgType,
		Body:      body,
	})
}

func (s *service) History(ctx context.Context, businessID, customerID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	if limit < 1 {
		limit = 50
	}
	session, err := s.repo.FindSession(ctx, businessID, customerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return s.repo.ListMessages(ctx, session.ID, limit)
}

func (s *service) CustomersForBusiness(ctx context.Context, businessID uuid.UUID) ([]uuid.UUID, error) {
	sessions, err := s.repo.ListSessionsForBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	customerIDs := make([]uuid.UUID, 0, len(sessions))
	seen := make(map[uuid.UUID]struct{}, len(sessions))
	for _, session := range sessions {
		if _, ok := seen[session.CustomerID]; ok {
			continue
		}
		seen[session.CustomerID] = struct{}{}
		customerIDs = append(customerIDs, session.CustomerID)
	}
	return customerIDs, nil
}
