package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/internal/address"
	"github.com/velostore/storefront-backend/internal/inventory"
	"github.com/velostore/storefront-backend/internal/orders"
	"github.com/velostore/storefront-backend/internal/payments"
	"github.com/velostore/storefront-backend/internal/products"
	"github.com/velostore/storefront-backend/pkg/db/models"
	"github.com/velostore/storefront-backend/pkg/enums"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CartReader pulls the user's persisted cart lines; satisfied by cart.Service.
type CartReader interface {
	Items(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
}

// AddressResolver checks ownership or creates inline addresses; satisfied by address.Service.
type AddressResolver interface {
	Resolve(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
	CreateInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, input address.Input) (*models.Address, error)
}

// Reserver places and releases inventory holds; satisfied by inventory.Service.
type Reserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, requests []inventory.ReservationRequest) error
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// IntentCreator opens the path to the hosted gateway checkout; satisfied by payments.Service.
type IntentCreator interface {
	CreateIntent(ctx context.Context, orderID, userID uuid.UUID) (*payments.Intent, error)
}

// ItemInput is one requested line when the client bypasses the stored cart.
type ItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"gt=0"`
}

// Input is the checkout request. Addresses come either as ids from the user's
// address book or as raw fields to be created inline. Billing falls back to
// shipping when absent.
type Input struct {
	Items             []ItemInput    `json:"items,omitempty"`
	ShippingAddressID *uuid.UUID     `json:"shipping_address_id,omitempty"`
	BillingAddressID  *uuid.UUID     `json:"billing_address_id,omitempty"`
	ShippingAddress   *address.Input `json:"shipping_address,omitempty"`
	BillingAddress    *address.Input `json:"billing_address,omitempty"`
}

// Result is returned to the client so it can proceed to payment.
type Result struct {
	Order         *orders.Detail   `json:"order"`
	PaymentIntent *payments.Intent `json:"payment_intent"`
}

// Service is the synchronous checkout orchestrator.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input Input) (*Result, error)
}

type service struct {
	ordersRepo orders.Repository
	catalog    products.Repository
	cart       CartReader
	addresses  AddressResolver
	reserver   Reserver
	intents    IntentCreator
	tx         txRunner
	logg       *logger.Logger
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	OrdersRepo orders.Repository
	Catalog    products.Repository
	Cart       CartReader
	Addresses  AddressResolver
	Reserver   Reserver
	Intents    IntentCreator
	Tx         txRunner
	Logger     *logger.Logger
}

// NewService builds a checkout orchestrator with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address resolver required")
	}
	if params.Reserver == nil {
		return nil, fmt.Errorf("inventory reserver required")
	}
	if params.Intents == nil {
		return nil, fmt.Errorf("intent creator required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		ordersRepo: params.OrdersRepo,
		catalog:    params.Catalog,
		cart:       params.Cart,
		addresses:  params.Addresses,
		reserver:   params.Reserver,
		intents:    params.Intents,
		tx:         params.Tx,
		logg:       params.Logger,
	}, nil
}

// Execute runs the synchronous checkout path: order create and inventory
// reservation commit or roll back together; the remote intent call happens
// after commit, with an explicit compensating delete if it fails. The cart is
// deliberately left intact until payment is confirmed by the webhook.
func (s *service) Execute(ctx context.Context, userID uuid.UUID, input Input) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	items, err := s.resolveItems(ctx, userID, input.Items)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		shippingID, billingID, err := s.resolveAddresses(ctx, tx, userID, input)
		if err != nil {
			return err
		}

		lineItems, subtotal, err := s.snapshotLines(ctx, tx, items)
		if err != nil {
			return err
		}
		totals := orders.ComputeTotals(subtotal)

		order = &models.Order{
			UserID:            userID,
			Status:            enums.OrderStatusPending,
			PaymentStatus:     enums.PaymentStatusPending,
			SubtotalMinor:     totals.SubtotalMinor,
			TaxMinor:          totals.TaxMinor,
			ShippingFeeMinor:  totals.ShippingFeeMinor,
			TotalMinor:        totals.TotalMinor,
			Currency:          "INR",
			ShippingAddressID: shippingID,
			BillingAddressID:  billingID,
			Items:             lineItems,
		}
		if _, err := s.ordersRepo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		requests := make([]inventory.ReservationRequest, 0, len(items))
		for _, item := range items {
			requests = append(requests, inventory.ReservationRequest{
				ProductID: item.ProductID,
				Qty:       item.Qty,
			})
		}
		// a shortfall rolls back the whole tx, taking the order row with it
		return s.reserver.Reserve(ctx, tx, order.ID, requests)
	})
	if err != nil {
		return nil, err
	}

	intent, err := s.intents.CreateIntent(ctx, order.ID, userID)
	if err != nil {
		s.compensate(ctx, order.ID)
		return nil, err
	}

	detail, err := s.ordersRepo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}

	lctx := s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), order.ID.String())
	s.logg.Info(lctx, "checkout completed, awaiting payment")

	return &Result{Order: orderDetail(detail), PaymentIntent: intent}, nil
}

func (s *service) resolveItems(ctx context.Context, userID uuid.UUID, explicit []ItemInput) ([]ItemInput, error) {
	if len(explicit) > 0 {
		for _, item := range explicit {
			if item.ProductID == uuid.Nil || item.Qty <= 0 {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "items must carry a product id and a positive qty")
			}
		}
		return explicit, nil
	}

	cartItems, err := s.cart.Items(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]ItemInput, 0, len(cartItems))
	for _, item := range cartItems {
		items = append(items, ItemInput{ProductID: item.ProductID, Qty: item.Qty})
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	return items, nil
}

func (s *service) resolveAddresses(ctx context.Context, tx *gorm.DB, userID uuid.UUID, input Input) (uuid.UUID, uuid.UUID, error) {
	shippingID, err := s.resolveOne(ctx, tx, userID, input.ShippingAddressID, input.ShippingAddress)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if shippingID == uuid.Nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}

	billingID, err := s.resolveOne(ctx, tx, userID, input.BillingAddressID, input.BillingAddress)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if billingID == uuid.Nil {
		billingID = shippingID
	}
	return shippingID, billingID, nil
}

func (s *service) resolveOne(ctx context.Context, tx *gorm.DB, userID uuid.UUID, id *uuid.UUID, raw *address.Input) (uuid.UUID, error) {
	switch {
	case id != nil && *id != uuid.Nil:
		resolved, err := s.addresses.Resolve(ctx, userID, *id)
		if err != nil {
			return uuid.Nil, err
		}
		return resolved.ID, nil
	case raw != nil:
		created, err := s.addresses.CreateInTx(ctx, tx, userID, *raw)
		if err != nil {
			return uuid.Nil, err
		}
		return created.ID, nil
	default:
		return uuid.Nil, nil
	}
}

func (s *service) snapshotLines(ctx context.Context, tx *gorm.DB, items []ItemInput) ([]models.OrderLineItem, int64, error) {
	catalog := s.catalog.WithTx(tx)
	lines := make([]models.OrderLineItem, 0, len(items))
	var subtotal int64

	for _, item := range items {
		product, err := catalog.FindByID(ctx, item.ProductID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"product_id": item.ProductID})
			}
			return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.Active {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "product is not purchasable").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}

		lineTotal := product.UnitPriceMinor * int64(item.Qty)
		lines = append(lines, models.OrderLineItem{
			ProductID:      product.ID,
			Name:           product.Title,
			Qty:            item.Qty,
			UnitPriceMinor: product.UnitPriceMinor,
			LineTotalMinor: lineTotal,
		})
		subtotal += lineTotal
	}
	return lines, subtotal, nil
}

// compensate undoes a committed order when intent creation fails afterwards.
// Failures here are logged, the caller still sees the original error.
func (s *service) compensate(ctx context.Context, orderID uuid.UUID) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.reserver.Release(ctx, tx, orderID); err != nil {
			return err
		}
		return s.ordersRepo.WithTx(tx).Delete(ctx, orderID)
	})
	lctx := s.logg.WithOrderID(ctx, orderID.String())
	if err != nil {
		s.logg.Error(lctx, "checkout compensation failed, order may be orphaned", err)
		return
	}
	s.logg.Info(lctx, "checkout compensated, order deleted and holds released")
}

func orderDetail(order *models.Order) *orders.Detail {
	detail := &orders.Detail{
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
		Items:             make([]orders.LineItemView, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		detail.Items = append(detail.Items, orders.LineItemView{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
			LineTotalMinor: item.LineTotalMinor,
		})
	}
	return detail
}
