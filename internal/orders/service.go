package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/internal/inventory"
	"github.com/velostore/storefront-backend/pkg/db/models"
	"github.com/velostore/storefront-backend/pkg/enums"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/logger"
	"github.com/velostore/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InventoryAdjuster covers the stock movements the order lifecycle triggers:
// dropping holds on cancellation and putting returned quantities back on hand.
type InventoryAdjuster interface {
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	Restock(ctx context.Context, tx *gorm.DB, requests []inventory.ReservationRequest) error
}

// Service defines order-level operations beyond repository reads.
type Service interface {
	Get(ctx context.Context, orderID, userID uuid.UUID) (*Detail, error)
	GetAny(ctx context.Context, orderID uuid.UUID) (*Detail, error)
	ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params, filters ListFilters) (*List, error)
	Cancel(ctx context.Context, input CancelInput) error
	RequestReturn(ctx context.Context, input ReturnInput) error
	MarkShipped(ctx context.Context, input FulfillmentInput) error
	MarkDelivered(ctx context.Context, input FulfillmentInput) error
	Restock(ctx context.Context, input FulfillmentInput) error
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory InventoryAdjuster
	logg      *logger.Logger
	now       func() time.Time
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Inventory InventoryAdjuster
	Logger    *logger.Logger
	Now       func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory adjuster required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		inventory: params.Inventory,
		logg:      params.Logger,
		now:       now,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID, userID uuid.UUID) (*Detail, error) {
	if orderID == uuid.Nil || userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and user id required")
	}
	order, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return toDetail(order), nil
}

func (s *service) GetAny(ctx context.Context, orderID uuid.UUID) (*Detail, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return toDetail(order), nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params, filters ListFilters) (*List, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListByUser(ctx, userID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// Cancel aborts an order that has not been paid. The reservation holds come
// back immediately instead of waiting out their expiry.
func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUser(ctx, input.OrderID, input.UserID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		switch order.Status {
		case enums.OrderStatusCancelled:
			return nil
		case enums.OrderStatusShipped, enums.OrderStatusDelivered, enums.OrderStatusReturned:
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("%s orders cannot be cancelled", order.Status))
		}

		now := s.now()
		updates := map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		}
		if input.Reason != nil {
			updates["cancel_reason"] = *input.Reason
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		if err := s.inventory.Release(ctx, tx, order.ID); err != nil {
			return err
		}

		lctx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(lctx, "order cancelled, holds released")
		return nil
	})
}

// RequestReturn records a return intent on a delivered order. Money movement
// happens later through the admin refund flow, never here.
func (s *service) RequestReturn(ctx context.Context, input ReturnInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUser(ctx, input.OrderID, input.UserID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be returned")
		}

		if err := repo.CreateReturn(ctx, &models.OrderReturn{
			OrderID: order.ID,
			Reason:  input.Reason,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return")
		}
		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusReturned); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return nil
	})
}

func (s *service) MarkShipped(ctx context.Context, input FulfillmentInput) error {
	return s.transition(ctx, input.OrderID, enums.OrderStatusProcessing, enums.OrderStatusShipped, "shipped_at")
}

func (s *service) MarkDelivered(ctx context.Context, input FulfillmentInput) error {
	return s.transition(ctx, input.OrderID, enums.OrderStatusShipped, enums.OrderStatusDelivered, "delivered_at")
}

// Restock puts a returned order's quantities back on hand. The return row
// carries a restocked_at stamp so running this twice cannot double the stock.
func (s *service) Restock(ctx context.Context, input FulfillmentInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.OrderStatusReturned {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only returned orders can be restocked")
		}

		ret, err := repo.FindReturnByOrder(ctx, order.ID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "returned order has no return record")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return")
		}
		if ret.RestockedAt != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has already been restocked")
		}

		requests := make([]inventory.ReservationRequest, 0, len(order.Items))
		for _, item := range order.Items {
			requests = append(requests, inventory.ReservationRequest{
				ProductID: item.ProductID,
				Qty:       item.Qty,
			})
		}
		if err := s.inventory.Restock(ctx, tx, requests); err != nil {
			return err
		}
		if err := repo.MarkReturnRestocked(ctx, ret.ID, s.now()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp return")
		}

		lctx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(lctx, "returned order restocked")
		return nil
	})
}

func (s *service) transition(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, stampColumn string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != from {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order must be %s to become %s", from, to))
		}

		updates := map[string]any{
			"status":    to,
			stampColumn: s.now(),
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return nil
	})
}

func toDetail(order *models.Order) *Detail {
	detail := &Detail{
		ID:                order.ID,
		CreatedAt:         order.CreatedAt,
		Status:            order.Status,
		PaymentStatus:     order.PaymentStatus,
		SubtotalMinor:     order.SubtotalMinor,
		TaxMinor:          order.TaxMinor,
		ShippingFeeMinor:  order.ShippingFeeMinor,
		TotalMinor:        order.TotalMinor,
		Currency:          order.Currency,
		ShippingAddressID: order.ShippingAddressID,
		BillingAddressID:  order.BillingAddressID,
		CancelReason:      order.CancelReason,
		Items:             make([]LineItemView, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		detail.Items = append(detail.Items, LineItemView{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
			LineTotalMinor: item.LineTotalMinor,
		})
	}
	if order.Payment != nil {
		detail.Payment = &PaymentView{
			Status:           order.Payment.Status,
			GatewayOrderID:   order.Payment.GatewayOrderID,
			GatewayPaymentID: order.Payment.GatewayPaymentID,
			AmountMinor:      order.Payment.AmountMinor,
			Currency:         order.Payment.Currency,
		}
	}
	return detail
}
