package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/pkg/db"
	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
	pkgerrors "github.com/sasabothq/sasabot-backend/pkg/errors"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
	"github.com/sasabothq/sasabot-backend/pkg/types"
)

const lockScope = "conversation"

// Locker is the mutex surface the store needs from redis.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key string) error
	LockKey(parts ...string) string
}

// ErrConversationBusy signals another delivery for the same key is
// mid-flight. The caller drops the message and acknowledges.
var ErrConversationBusy = pkgerrors.New(pkgerrors.CodeStateConflict, "conversation is being processed")

// ErrStaleState signals a CAS advance lost to a concurrent write.
var ErrStaleState = pkgerrors.New(pkgerrors.CodeStateConflict, "conversation state changed underneath")

type store struct {
	repo    Repository
	locker  Locker
	logger  *logger.Logger
	lockTTL time.Duration
}

// NewStore builds the conversation state store.
func NewStore(repo Repository, locker Locker, logg *logger.Logger, lockTTL time.Duration) (Store, error) {
	if repo == nil {
		return nil, errors.New("conversation repository is required")
	}
	if locker == nil {
		return nil, errors.New("conversation locker is required")
	}
	if logg == nil {
		return nil, errors.New("conversation logger is required")
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &store{repo: repo, locker: locker, logger: logg, lockTTL: lockTTL}, nil
}

// Get loads the live state for a key. A record whose step is outside
// the known set is corrupt: it gets cleared and Get reports no state,
// so the user falls back to triggers instead of being stuck forever.
func (s *store) Get(ctx context.Context, phone string, businessID *uuid.UUID) (*models.ConversationState, error) {
	state, err := s.repo.Find(ctx, phone, businessID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if !state.CurrentStep.IsValid() {
		ctx = s.logger.WithFields(ctx, map[string]any{
			"phone": phone,
			"step":  state.CurrentStep.String(),
		})
		s.logger.Warn(ctx, "clearing conversation state with unknown step")
		if err := s.repo.DeleteByKey(ctx, phone, businessID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return state, nil
}

// Begin replaces any existing state for the key with a fresh record at
// the given step.
func (s *store) Begin(ctx context.Context, phone string, businessID *uuid.UUID, step enums.ConversationStep, pending types.JSONMap) (*models.ConversationState, error) {
	if err := s.repo.DeleteByKey(ctx, phone, businessID); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, &models.ConversationState{
		PhoneNumber: phone,
		BusinessID:  businessID,
		CurrentStep: step,
		PendingData: pending,
	})
}

// Advance moves state to the next step only if nothing else advanced
// it first.
func (s *store) Advance(ctx context.Context, state *models.ConversationState, next enums.ConversationStep, pending types.JSONMap) error {
	ok, err := s.repo.AdvanceStep(ctx, state.ID, state.CurrentStep, next, pending)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStaleState
	}
	state.CurrentStep = next
	state.PendingData = pending
	return nil
}

// Clear removes the state for a key.
func (s *store) Clear(ctx context.Context, phone string, businessID *uuid.UUID) error {
	return s.repo.DeleteByKey(ctx, phone, businessID)
}

// WithLock serializes handling for one conversation key. A contended
// lock surfaces ErrConversationBusy rather than blocking the webhook.
func (s *store) WithLock(ctx context.Context, phone string, businessID *uuid.UUID, fn func(ctx context.Context) error) error {
	parts := []string{lockScope, phone}
	if businessID != nil {
		parts = append(parts, businessID.String())
	}
	key := s.locker.LockKey(parts...)

	_, acquired, err := s.locker.AcquireLock(ctx, key, s.lockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrConversationBusy
	}
	defer func() {
		if releaseErr := s.locker.ReleaseLock(context.WithoutCancel(ctx), key); releaseErr != nil {
			s.logger.Warn(ctx, "failed to release conversation lock")
		}
	}()

	return fn(ctx)
}
