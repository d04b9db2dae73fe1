package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sasabothq/sasabot-backend/internal/chat"
	"github.com/sasabothq/sasabot-backend/internal/orders"
	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
	pkgerrors "github.com/sasabothq/sasabot-backend/pkg/errors"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
	"github.com/sasabothq/sasabot-backend/pkg/metrics"
	"github.com/sasabothq/sasabot-backend/pkg/mpesa"
	"github.com/sasabothq/sasabot-backend/pkg/phone"
	"github.com/sasabothq/sasabot-backend/pkg/whatsapp"
)

type service struct {
	repo    Repository
	orders  orders.Service
	pusher  mpesa.STKPusher
	sender  whatsapp.Sender
	chat    chat.Service
	metrics *metrics.BotMetrics
	logger  *logger.Logger
	now     func() time.Time
}

// NewService builds the payment service. Metrics may be nil.
func NewService(
	repo Repository,
	orderSvc orders.Service,
	pusher mpesa.STKPusher,
	sender whatsapp.Sender,
	chatSvc chat.Service,
	botMetrics *metrics.BotMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, errors.New("payments repository is required")
	}
	if orderSvc == nil {
		return nil, errors.New("orders service is required")
	}
	if pusher == nil {
		return nil, errors.New("stk pusher is required")
	}
	if sender == nil {
		return nil, errors.New("whatsapp sender is required")
	}
	if chatSvc == nil {
		return nil, errors.New("chat service is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &service{
		repo:    repo,
		orders:  orderSvc,
		pusher:  pusher,
		sender:  sender,
		chat:    chatSvc,
		metrics: botMetrics,
		logger:  logg,
		now:     time.Now,
	}, nil
}

func (s *service) RequestPayment(ctx context.Context, business *models.Business, order *models.Order, payerPhone string) error {
	if business == nil || order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "business and order are required")
	}
	msisdn, err := phone.ToMpesaFormat(payerPhone)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment phone")
	}

	resp, err := s.pusher.InitiateSTKPush(ctx, mpesa.STKPushRequest{
		Phone:            msisdn,
		Amount:           order.TotalAmount,
		AccountReference: order.OrderNumber,
		Description:      fmt.Sprintf("Payment for order %s", order.OrderNumber),
	})
	if err != nil {
		return err
	}

	// The callback can only be matched through this id, so losing it
	// would orphan the payment.
	if err := s.orders.SetPaymentRequest(ctx, order.ID, msisdn, resp.CheckoutRequestID); err != nil {
		s.logger.Error(s.logger.WithOrderID(ctx, order.ID.String()),
			"failed to persist checkout request id after stk push", err)
		return err
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"order_id":            order.ID.String(),
		"checkout_request_id": resp.CheckoutRequestID,
	}), "stk push initiated")
	return nil
}

func (s *service) Reconcile(ctx context.Context, raw []byte) mpesa.Ack {
	ack := mpesa.AcceptedAck()

	result, err := mpesa.ParseCallback(raw)
	if err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()),
			"discarding malformed payment callback")
		s.metrics.IncCallback("malformed")
		return ack
	}
	ctx = s.logger.WithField(ctx, "checkout_request_id", result.CheckoutRequestID)

	order, err := s.orders.FindByCheckoutRequestID(ctx, result.CheckoutRequestID)
	if err != nil {
		// Phone matching is a weak fallback: it can mismatch when the
		// same payer has several pending orders across businesses.
		if result.Phone != "" {
			order, err = s.orders.FindLatestPaymentPendingByPhone(ctx, result.Phone)
			if err == nil {
				s.logger.Warn(s.logger.WithOrderID(ctx, order.ID.String()),
					"payment callback matched by phone fallback, not checkout id")
			}
		}
		if err != nil {
			s.logger.Warn(ctx, "payment callback matched no order")
			s.metrics.IncCallback("unmatched")
			return ack
		}
	}
	ctx = s.logger.WithOrderID(ctx, order.ID.String())

	if result.Success {
		applied, err := s.orders.MarkPaid(ctx, order.ID, result.ReceiptNumber, s.now().UTC())
		if err != nil {
			s.logger.Error(ctx, "failed to mark order paid", err)
			s.metrics.IncCallback("error")
			return ack
		}
		if !applied {
			s.metrics.IncCallback("duplicate")
			return ack
		}
		s.metrics.IncCallback("paid")
		s.notify(ctx, order,
			fmt.Sprintf("Payment successful! Your order %s has been confirmed. Transaction ID: %s",
				order.OrderNumber, result.ReceiptNumber))
		return ack
	}

	applied, err := s.orders.MarkPaymentFailed(ctx, order.ID)
	if err != nil {
		s.logger.Error(ctx, "failed to mark payment failed", err)
		s.metrics.IncCallback("error")
		return ack
	}
	if !applied {
		s.metrics.IncCallback("duplicate")
		return ack
	}
	s.metrics.IncCallback("failed")
	s.notify(ctx, order,
		fmt.Sprintf("Payment failed for order %s. Please try again or contact support.", order.OrderNumber))
	return ack
}

// notify tells the customer about the payment outcome over the
// business's WhatsApp number. Delivery failures are logged only; the
// order transition already happened.
func (s *service) notify(ctx context.Context, order *models.Order, body string) {
	business, err := s.repo.FindBusiness(ctx, order.BusinessID)
	if err != nil {
		s.logger.Error(ctx, "failed to load business for payment notification", err)
		return
	}
	customer, err := s.repo.FindCustomer(ctx, order.CustomerID)
	if err != nil {
		s.logger.Error(ctx, "failed to load customer for payment notification", err)
		return
	}

	creds := s.sender.CredentialsFor(business.WhatsAppAPIToken, business.WhatsAppPhoneID)
	if err := s.sender.SendText(ctx, creds, customer.PhoneNumber, body); err != nil {
		s.logger.Error(ctx, "failed to deliver payment notification", err)
		return
	}
	if err := s.chat.Record(ctx, business.ID, customer.ID, enums.SenderBot, enums.MessageTypeText, body); err != nil {
		s.logger.Error(ctx, "failed to record payment notification", err)
	}
}
