package controllers

import (
	"net/http"

	"github.com/velostore/storefront-backend/api/middleware"
	"github.com/velostore/storefront-backend/api/responses"
	"github.com/velostore/storefront-backend/api/validators"
	checkoutsvc "github.com/velostore/storefront-backend/internal/checkout"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/logger"
)

// Checkout converts the cart (or an explicit item list) into a pending order
// plus a gateway payment intent.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID := middleware.UserUUIDFromContext(r.Context())
		var payload checkoutsvc.Input
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), userID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
