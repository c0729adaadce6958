package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/velostore/storefront-backend/api/responses"
	"github.com/velostore/storefront-backend/api/validators"
	"github.com/velostore/storefront-backend/internal/payments"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/logger"
)

type refundRequest struct {
	AmountMinor int64  `json:"amount_minor" validate:"omitempty,gt=0"`
	Reason      string `json:"reason,omitempty"`
}

// AdminRefundPayment issues a gateway refund for a paid payment. Stock is
// never restocked by a refund.
func AdminRefundPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		paymentID, err := uuid.Parse(chi.URLParam(r, "paymentID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment id must be a uuid"))
			return
		}

		var payload refundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		err = svc.Refund(ctx, payments.RefundInput{
			PaymentID:   paymentID,
			AmountMinor: payload.AmountMinor,
			Reason:      payload.Reason,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "refunded"})
	}
}
