package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/api/responses"
	"github.com/sasabothq/sasabot-backend/api/validators"
	"github.com/sasabothq/sasabot-backend/internal/notifications"
	"github.com/sasabothq/sasabot-backend/internal/orders"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
	pkgerrors "github.com/sasabothq/sasabot-backend/pkg/errors"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
)

type orderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderStatusResponse struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	Notified    bool   `json:"notified"`
}

// VendorOrderStatus moves an order to the requested status and tells
// the customer over WhatsApp. A failed notification does not undo the
// transition.
func VendorOrderStatus(ordersSvc orders.Service, notifier notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "orderID must be a valid uuid"))
			return
		}
		ctx = logg.WithOrderID(ctx, orderID.String())

		var req orderStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown order status"))
			return
		}

		order, err := ordersSvc.UpdateStatus(ctx, orderID, status)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		notified := true
		if err := notifier.OrderStatusChanged(ctx, order); err != nil {
			notified = false
			logg.Error(ctx, "status notification not delivered", err)
		}

		responses.WriteSuccess(w, orderStatusResponse{
			OrderID:     order.ID.String(),
			OrderNumber: order.OrderNumber,
			Status:      string(order.Status),
			Notified:    notified,
		})
	}
}
