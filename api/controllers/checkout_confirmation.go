package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/velostore/storefront-backend/api/middleware"
	"github.com/velostore/storefront-backend/api/responses"
	"github.com/velostore/storefront-backend/api/validators"
	"github.com/velostore/storefront-backend/internal/payments"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/logger"
)

type confirmPaymentRequest struct {
	OrderID          uuid.UUID `json:"order_id" validate:"required"`
	GatewayPaymentID string    `json:"gateway_payment_id" validate:"required"`
	Signature        string    `json:"signature" validate:"required"`
}

// ConfirmPayment handles the browser's post-payment callback. It verifies the
// client signature and marks the payment paid; order and inventory state wait
// for the webhook, which is the source of truth.
func ConfirmPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err := svc.VerifyClientSignature(r.Context(), payments.VerifyInput{
			OrderID:          payload.OrderID,
			UserID:           middleware.UserUUIDFromContext(r.Context()),
			GatewayPaymentID: payload.GatewayPaymentID,
			Signature:        payload.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "verified"})
	}
}
