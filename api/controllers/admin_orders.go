package controllers

import (
	"net/http"

	"github.com/velostore/storefront-backend/api/responses"
	"github.com/velostore/storefront-backend/internal/orders"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/logger"
)

// AdminGetOrder returns any order regardless of owner.
func AdminGetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := orderIDFromURL(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		detail, err := svc.GetAny(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// AdminShipOrder moves a processing order into shipped.
func AdminShipOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return fulfillmentHandler(svc, logg, "shipped", func(svc orders.Service, r *http.Request, input orders.FulfillmentInput) error {
		return svc.MarkShipped(r.Context(), input)
	})
}

// AdminDeliverOrder moves a shipped order into delivered.
func AdminDeliverOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return fulfillmentHandler(svc, logg, "delivered", func(svc orders.Service, r *http.Request, input orders.FulfillmentInput) error {
		return svc.MarkDelivered(r.Context(), input)
	})
}

// AdminRestockOrder puts a returned order's quantities back on hand.
func AdminRestockOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return fulfillmentHandler(svc, logg, "restocked", func(svc orders.Service, r *http.Request, input orders.FulfillmentInput) error {
		return svc.Restock(r.Context(), input)
	})
}

func fulfillmentHandler(
	svc orders.Service,
	logg *logger.Logger,
	result string,
	apply func(orders.Service, *http.Request, orders.FulfillmentInput) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := orderIDFromURL(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := apply(svc, r, orders.FulfillmentInput{OrderID: orderID}); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": result})
	}
}
