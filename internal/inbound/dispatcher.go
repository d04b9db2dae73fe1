package inbound

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/internal/catalog"
	"github.com/sasabothq/sasabot-backend/internal/commerce"
	"github.com/sasabothq/sasabot-backend/internal/conversation"
	"github.com/sasabothq/sasabot-backend/internal/customers"
	"github.com/sasabothq/sasabot-backend/internal/onboarding"
	"github.com/sasabothq/sasabot-backend/internal/responder"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
	"github.com/sasabothq/sasabot-backend/pkg/metrics"
	"github.com/sasabothq/sasabot-backend/pkg/phone"
	"github.com/sasabothq/sasabot-backend/pkg/redis"
)

const idempotencyScope = "whatsapp"

// Per-tenant platform trigger words. Matched on the exact lowered
// message only, so customer chatter never hijacks the flow.
var platformTriggers = map[string]bool{
	"hi":      true,
	"hello":   true,
	"sasabot": true,
}

// Dispatcher routes one webhook delivery to the owning flow. Both
// methods swallow everything except infrastructure failures; the
// gateway must always get a 200.
type Dispatcher interface {
	// HandlePlatform serves the platform WhatsApp line: onboarding,
	// platform Q&A, and tenant turns resolved by receiving number.
	HandlePlatform(ctx context.Context, raw []byte) error

	// HandleBusiness serves a tenant-scoped webhook path.
	HandleBusiness(ctx context.Context, businessID uuid.UUID, raw []byte) error
}

type dispatcher struct {
	states         conversation.Store
	onboarding     onboarding.Engine
	onboardingRepo onboarding.Repository
	commerce       commerce.Engine
	catalog        catalog.Repository
	customers      customers.Service
	responder      responder.Service
	idempotency    redis.IdempotencyStore
	idempotencyTTL time.Duration
	metrics        *metrics.BotMetrics
	logger         *logger.Logger
}

// NewDispatcher builds the webhook dispatcher. Metrics may be nil.
func NewDispatcher(
	states conversation.Store,
	onboardingEngine onboarding.Engine,
	onboardingRepo onboarding.Repository,
	commerceEngine commerce.Engine,
	catalogRepo catalog.Repository,
	customerSvc customers.Service,
	responderSvc responder.Service,
	idempotency redis.IdempotencyStore,
	idempotencyTTL time.Duration,
	botMetrics *metrics.BotMetrics,
	logg *logger.Logger,
) (Dispatcher, error) {
	if states == nil {
		return nil, errors.New("conversation store is required")
	}
	if onboardingEngine == nil || onboardingRepo == nil {
		return nil, errors.New("onboarding engine and repository are required")
	}
	if commerceEngine == nil {
		return nil, errors.New("commerce engine is required")
	}
	if catalogRepo == nil {
		return nil, errors.New("catalog repository is required")
	}
	if customerSvc == nil {
		return nil, errors.New("customers service is required")
	}
	if responderSvc == nil {
		return nil, errors.New("responder service is required")
	}
	if idempotency == nil {
		return nil, errors.New("idempotency store is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &dispatcher{
		states:         states,
		onboarding:     onboardingEngine,
		onboardingRepo: onboardingRepo,
		commerce:       commerceEngine,
		catalog:        catalogRepo,
		customers:      customerSvc,
		responder:      responderSvc,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
		metrics:        botMetrics,
		logger:         logg,
	}, nil
}

func (d *dispatcher) HandlePlatform(ctx context.Context, raw []byte) error {
	msg, ok := d.admit(ctx, raw)
	if !ok {
		return nil
	}

	// A tenant line sharing the platform webhook routes by receiving
	// number.
	if msg.ReceivingNumber != "" {
		if business, err := d.onboardingRepo.FindBusinessByWhatsAppNumber(ctx, phone.Normalize(msg.ReceivingNumber)); err == nil {
			d.metrics.IncInbound("business")
			return d.dispatchBusiness(ctx, business.ID, msg)
		}
	}

	d.metrics.IncInbound("platform")
	sender := phone.Normalize(msg.From)
	ctx = d.logger.WithPhone(ctx, sender)

	err := d.states.WithLock(ctx, sender, nil, func(ctx context.Context) error {
		return d.dispatchPlatform(ctx, sender, msg)
	})
	if errors.Is(err, conversation.ErrConversationBusy) {
		d.logger.Warn(ctx, "dropping concurrent platform turn")
		return nil
	}
	return err
}

func (d *dispatcher) HandleBusiness(ctx context.Context, businessID uuid.UUID, raw []byte) error {
	msg, ok := d.admit(ctx, raw)
	if !ok {
		return nil
	}
	d.metrics.IncInbound("business")
	return d.dispatchBusiness(ctx, businessID, msg)
}

// admit parses and deduplicates one delivery. A false return means the
// turn is already answered or carries nothing actionable.
func (d *dispatcher) admit(ctx context.Context, raw []byte) (*Message, bool) {
	msg, err := ParseEnvelope(raw)
	if err != nil {
		d.logger.Warn(d.logger.WithField(ctx, "error", err.Error()),
			"ignoring malformed webhook delivery")
		return nil, false
	}
	if msg == nil {
		d.metrics.IncInbound("status")
		return nil, false
	}

	if msg.ID != "" {
		key := d.idempotency.IdempotencyKey(idempotencyScope, msg.ID)
		fresh, err := d.idempotency.SetNX(ctx, key, "1", d.idempotencyTTL)
		if err != nil {
			// Availability beats dedupe when redis is down.
			d.logger.Warn(d.logger.WithField(ctx, "error", err.Error()),
				"webhook dedupe unavailable, processing anyway")
		} else if !fresh {
			d.metrics.IncInbound("duplicate")
			return nil, false
		}
	}
	return msg, true
}

func (d *dispatcher) dispatchPlatform(ctx context.Context, sender string, msg *Message) error {
	if msg.ButtonID != "" {
		switch msg.ButtonID {
		case onboarding.ButtonAbout:
			return d.onboarding.About(ctx, sender)
		case onboarding.ButtonFAQs:
			return d.onboarding.FAQs(ctx, sender)
		case onboarding.ButtonDashboardLogin:
			return d.onboarding.DashboardLogin(ctx, sender)
		case onboarding.ButtonOnboarding:
			return d.onboarding.Start(ctx, sender)
		default:
			// In-flow buttons belong to the step machine.
			return d.onboarding.Resume(ctx, sender, onboarding.Input{ButtonID: msg.ButtonID})
		}
	}

	inProgress, err := d.onboarding.InProgress(ctx, sender)
	if err != nil {
		return err
	}
	if inProgress {
		return d.onboarding.Resume(ctx, sender, onboarding.Input{Text: msg.Text})
	}

	if platformTriggers[strings.ToLower(strings.TrimSpace(msg.Text))] {
		return d.onboarding.Welcome(ctx, sender)
	}
	return d.responder.RespondPlatform(ctx, sender, msg.Text)
}

func (d *dispatcher) dispatchBusiness(ctx context.Context, businessID uuid.UUID, msg *Message) error {
	business, err := d.catalog.FindBusiness(ctx, businessID)
	if err != nil {
		d.logger.Warn(d.logger.WithBusinessID(ctx, businessID.String()),
			"dropping turn for unknown business")
		return nil
	}
	if !business.IsActive {
		d.logger.Warn(d.logger.WithBusinessID(ctx, businessID.String()),
			"dropping turn for inactive business")
		return nil
	}

	customer, err := d.customers.EnsureByPhone(ctx, msg.From)
	if err != nil {
		return err
	}
	ctx = d.logger.WithBusinessID(d.logger.WithPhone(ctx, customer.PhoneNumber), business.ID.String())

	err = d.states.WithLock(ctx, customer.PhoneNumber, &business.ID, func(ctx context.Context) error {
		if msg.ButtonID != "" {
			return d.commerce.HandleButton(ctx, business, customer, msg.ButtonID)
		}
		handled, err := d.commerce.HandleText(ctx, business, customer, msg.Text)
		if err != nil || handled {
			return err
		}
		return d.responder.RespondBusiness(ctx, business, customer, msg.Text)
	})
	if errors.Is(err, conversation.ErrConversationBusy) {
		d.logger.Warn(ctx, "dropping concurrent business turn")
		return nil
	}
	return err
}
