package conversation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
	"github.com/sasabothq/sasabot-backend/pkg/types"
)

// Repository defines persistence operations for conversation state.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, phone string, businessID *uuid.UUID) (*models.ConversationState, error)
	Create(ctx context.Context, state *models.ConversationState) (*models.ConversationState, error)
	AdvanceStep(ctx context.Context, id uuid.UUID, from, to enums.ConversationStep, pending types.JSONMap) (bool, error)
	DeleteByKey(ctx context.Context, phone string, businessID *uuid.UUID) error
}

// Store is the surface the flow engines use. All mutations assume the
// caller holds the per-key lock via WithLock.
type Store interface {
	Get(ctx context.Context, phone string, businessID *uuid.UUID) (*models.ConversationState, error)
	Begin(ctx context.Context, phone string, businessID *uuid.UUID, step enums.ConversationStep, pending types.JSONMap) (*models.ConversationState, error)
	Advance(ctx context.Context, state *models.ConversationState, next enums.ConversationStep, pending types.JSONMap) error
	Clear(ctx context.Context, phone string, businessID *uuid.UUID) error
	WithLock(ctx context.Context, phone string, businessID *uuid.UUID, fn func(ctx context.Context) error) error
}
