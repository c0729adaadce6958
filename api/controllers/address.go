package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/velostore/storefront-backend/api/middleware"
	"github.com/velostore/storefront-backend/api/responses"
	"github.com/velostore/storefront-backend/api/validators"
	"github.com/velostore/storefront-backend/internal/address"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/logger"
)

// CreateAddress adds an address to the user's address book.
func CreateAddress(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload address.Input
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		created, err := svc.Create(ctx, middleware.UserUUIDFromContext(ctx), payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ListAddresses returns the user's address book.
func ListAddresses(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		addresses, err := svc.List(ctx, middleware.UserUUIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, addresses)
	}
}

// DeleteAddress removes an address owned by the user.
func DeleteAddress(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		addressID, err := uuid.Parse(chi.URLParam(r, "addressID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "address id must be a uuid"))
			return
		}
		if err := svc.Delete(ctx, middleware.UserUUIDFromContext(ctx), addressID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
