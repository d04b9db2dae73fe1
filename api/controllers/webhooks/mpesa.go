package webhooks

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/sasabothq/sasabot-backend/internal/payments"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
	"github.com/sasabothq/sasabot-backend/pkg/mpesa"
)

// MpesaCallback terminates Daraja STK result callbacks. The gateway
// expects a bare ResultCode/ResultDesc body, not the API envelope.
func MpesaCallback(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ack := mpesa.AcceptedAck()
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			logg.Error(ctx, "failed to read mpesa callback body", err)
		} else {
			ack = svc.Reconcile(ctx, raw)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(ack); err != nil {
			logg.Error(ctx, "failed to encode mpesa ack", err)
		}
	}
}
