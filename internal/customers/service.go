package customers

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/pkg/db"
	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	pkgerrors "github.com/sasabothq/sasabot-backend/pkg/errors"
	"github.com/sasabothq/sasabot-backend/pkg/phone"
)

type service struct {
	repo Repository
}

// NewService builds the customer identity service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("customers repository is required")
	}
	return &service{repo: repo}, nil
}

// EnsureByPhone finds or creates the global customer record for a
// normalized phone number. Creation races resolve by re-reading.
func (s *service) EnsureByPhone(ctx context.Context, rawPhone string) (*models.Customer, error) {
	normalized := phone.Normalize(rawPhone)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone number is required")
	}

	customer, err := s.repo.FindByPhone(ctx, normalized)
	if err == nil {
		return customer, nil
	}
	if !db.IsNotFound(err) {
		return nil, err
	}

	created, createErr := s.repo.Create(ctx, &models.Customer{PhoneNumber: normalized})
	if createErr == nil {
		return created, nil
	}
	if db.IsUniqueViolation(createErr) {
		return s.repo.FindByPhone(ctx, normalized)
	}
	return nil, createErr
}

// UpdateName writes the customer's display name.
func (s *service) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	return s.repo.Update(ctx, id, map[string]any{"name": name})
}

// UpdateEmail writes the customer's email. "N/A" clears it.
func (s *service) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	email = strings.TrimSpace(email)
	if email == "" || strings.EqualFold(email, "n/a") {
		return s.repo.Update(ctx, id, map[string]any{"email": nil})
	}
	if !strings.Contains(email, "@") {
		return pkgerrors.New(pkgerrors.CodeValidation, "email looks invalid")
	}
	return s.repo.Update(ctx, id, map[string]any{"email": email})
}
