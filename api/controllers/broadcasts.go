package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/api/responses"
	"github.com/sasabothq/sasabot-backend/api/validators"
	"github.com/sasabothq/sasabot-backend/internal/bulk"
	pkgerrors "github.com/sasabothq/sasabot-backend/pkg/errors"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
)

type broadcastRequest struct {
	BusinessID string   `json:"business_id" validate:"required,uuid"`
	Message    string   `json:"message" validate:"required,min=1,max=4096"`
	Phones     []string `json:"phones" validate:"omitempty,dive,min=9"`
}

// VendorBroadcast sends a text to the business's chat customers, or to
// an explicit phone list when one is supplied.
func VendorBroadcast(svc bulk.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req broadcastRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		businessID, err := uuid.Parse(req.BusinessID)
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "business_id must be a valid uuid"))
			return
		}
		ctx = logg.WithBusinessID(ctx, businessID.String())

		result, err := svc.Broadcast(ctx, businessID, req.Phones, req.Message)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
