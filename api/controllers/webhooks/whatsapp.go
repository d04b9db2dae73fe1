// Package webhooks terminates the inbound HTTP surfaces of the Graph
// and Daraja gateways. Both providers retry on non-200, so handlers
// swallow processing failures and always acknowledge.
package webhooks

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/api/responses"
	"github.com/sasabothq/sasabot-backend/internal/inbound"
	"github.com/sasabothq/sasabot-backend/pkg/config"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

// VerifyWhatsApp answers Meta's subscription handshake. The challenge
// echoes back as plain text only when the verify token matches.
func VerifyWhatsApp(cfg config.WhatsAppConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := r.URL.Query().Get("hub.mode")
		token := r.URL.Query().Get("hub.verify_token")
		challenge := r.URL.Query().Get("hub.challenge")

		if mode != "subscribe" || token != cfg.VerifyToken {
			http.Error(w, "verification failed", http.StatusForbidden)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
	}
}

// PlatformWebhook receives onboarding traffic on the shared number.
func PlatformWebhook(d inbound.Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			logg.Error(ctx, "failed to read platform webhook body", err)
			responses.WriteSuccess(w, nil)
			return
		}

		if err := d.HandlePlatform(ctx, raw); err != nil {
			logg.Error(ctx, "platform webhook processing failed", err)
		}
		responses.WriteSuccess(w, nil)
	}
}

// BusinessWebhook receives customer traffic on a tenant-scoped path.
func BusinessWebhook(d inbound.Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		businessID, err := uuid.Parse(chi.URLParam(r, "businessID"))
		if err != nil {
			logg.Warn(logg.WithField(ctx, "business_id", chi.URLParam(r, "businessID")),
				"business webhook with malformed id dropped")
			responses.WriteSuccess(w, nil)
			return
		}
		ctx = logg.WithBusinessID(ctx, businessID.String())

		raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			logg.Error(ctx, "failed to read business webhook body", err)
			responses.WriteSuccess(w, nil)
			return
		}

		if err := d.HandleBusiness(ctx, businessID, raw); err != nil {
			logg.Error(ctx, "business webhook processing failed", err)
		}
		responses.WriteSuccess(w, nil)
	}
}
