package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
	"github.com/sasabothq/sasabot-backend/pkg/types"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a conversation state repository bound to the
// provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, phone string, businessID *uuid.UUID) (*models.ConversationState, error) {
	var state models.ConversationState
	err := scopeKey(r.db.WithContext(ctx), phone, businessID).
		Order("updated_at DESC").
		First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *repository) Create(ctx context.Context, state *models.ConversationState) (*models.ConversationState, error) {
	if state.ID == uuid.Nil {
		state.ID = uuid.New()
	}
	if state.PendingData == nil {
		state.PendingData = types.JSONMap{}
	}
	if err := r.db.WithContext(ctx).Create(state).Error; err != nil {
		return nil, err
	}
	return state, nil
}

// AdvanceStep performs a compare-and-swap on current_step so two
// racing webhook deliveries can not both advance the same state.
func (r *repository) AdvanceStep(ctx context.Context, id uuid.UUID, from, to enums.ConversationStep, pending types.JSONMap) (bool, error) {
	if pending == nil {
		pending = types.JSONMap{}
	}
	result := r.db.WithContext(ctx).
		Model(&models.ConversationState{}).
		Where("id = ? AND current_step = ?", id, from).
		Updates(map[string]any{
			"current_step": to,
			"pending_data": pending,
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) DeleteByKey(ctx context.Context, phone string, businessID *uuid.UUID) error {
	return scopeKey(r.db.WithContext(ctx), phone, businessID).
		Delete(&models.ConversationState{}).Error
}

func scopeKey(db *gorm.DB, phone string, businessID *uuid.UUID) *gorm.DB {
	db = db.Where("phone_number = ?", phone)
	if businessID == nil {
		return db.Where("business_id IS NULL")
	}
	return db.Where("business_id = ?", *businessID)
}
