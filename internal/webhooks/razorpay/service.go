package razorpay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/internal/cart"
	"github.com/velostore/storefront-backend/internal/notifications"
	"github.com/velostore/storefront-backend/internal/orders"
	"github.com/velostore/storefront-backend/internal/payments"
	"github.com/velostore/storefront-backend/internal/users"
	"github.com/velostore/storefront-backend/pkg/db/models"
	"github.com/velostore/storefront-backend/pkg/enums"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Deducter burns reservation holds into stock; satisfied by inventory.Service.
type Deducter interface {
	ConfirmDeduction(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// Notifier writes the in-app confirmation row; satisfied by notifications.Service.
type Notifier interface {
	CreateInTx(ctx context.Context, tx *gorm.DB, input notifications.CreateInput) error
}

// Service reconciles gateway webhook events into payment truth. It is the
// single writer that flips an order to paid; the client confirmation path is
// advisory only.
type Service interface {
	HandleEvent(ctx context.Context, event Event) error
}

type service struct {
	paymentsRepo payments.Repository
	ordersRepo   orders.Repository
	cartRepo     cart.Repository
	usersRepo    users.Repository
	deducter     Deducter
	notifier     Notifier
	mailer       notifications.Mailer
	tx           txRunner
	logg         *logger.Logger
	now          func() time.Time
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	PaymentsRepo payments.Repository
	OrdersRepo   orders.Repository
	CartRepo     cart.Repository
	UsersRepo    users.Repository
	Deducter     Deducter
	Notifier     Notifier
	Mailer       notifications.Mailer
	Tx           txRunner
	Logger       *logger.Logger
	Now          func() time.Time
}

// NewService wires the webhook reconciler.
func NewService(params ServiceParams) (Service, error) {
	if params.PaymentsRepo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.CartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.UsersRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Deducter == nil {
		return nil, fmt.Errorf("inventory deducter required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		paymentsRepo: params.PaymentsRepo,
		ordersRepo:   params.OrdersRepo,
		cartRepo:     params.CartRepo,
		usersRepo:    params.UsersRepo,
		deducter:     params.Deducter,
		notifier:     params.Notifier,
		mailer:       params.Mailer,
		tx:           params.Tx,
		logg:         params.Logger,
		now:          now,
	}, nil
}

// HandleEvent applies one verified webhook event. Replays of an already
// reconciled payment are acknowledged without side effects; everything the
// event changes lands in a single transaction so a partial failure leaves the
// previous state intact and the gateway retries against it.
func (s *service) HandleEvent(ctx context.Context, event Event) error {
	if event.Type != EventPaymentAuthorized && event.Type != EventPaymentCaptured {
		lctx := s.logg.WithField(ctx, "event", event.Type)
		s.logg.Info(lctx, "ignoring webhook event type")
		return nil
	}

	entity := event.entity()
	if entity.OrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing gateway order id")
	}

	lctx := s.logg.WithFields(ctx, map[string]any{
		"event":            event.Type,
		"gateway_order_id": entity.OrderID,
	})

	var order *models.Order
	var replay bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		paymentsRepo := s.paymentsRepo.WithTx(tx)

		payment, err := paymentsRepo.FindByGatewayOrderIDForUpdate(ctx, entity.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeInternal, "payment record not found").
					WithDetails(map[string]any{"gateway_order_id": entity.OrderID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		// Only a prior webhook counts as reconciled. The advisory client
		// confirm also marks the payment paid but never touches order,
		// stock, or cart, so a paid status without a webhook capture in
		// the log still needs this pass.
		reconciled := payment.GatewayEvents.Contains(enums.GatewayEventWebhookCapture)
		if payment.Status == enums.PaymentStatusRefunded ||
			(payment.Status == enums.PaymentStatusPaid && reconciled) {
			replay = true
			return nil
		}

		events := payment.GatewayEvents.Append(enums.GatewayEventWebhookCapture, s.now(), map[string]any{
			"event":              event.Type,
			"gateway_payment_id": entity.ID,
			"method":             entity.Method,
		})
		updates := map[string]any{
			"status":         enums.PaymentStatusPaid,
			"gateway_events": events,
		}
		if entity.ID != "" {
			updates["gateway_payment_id"] = entity.ID
		}
		if err := paymentsRepo.Update(ctx, payment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
		}

		ordersRepo := s.ordersRepo.WithTx(tx)
		order, err = ordersRepo.FindByID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := ordersRepo.Update(ctx, order.ID, map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"status":         enums.OrderStatusProcessing,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order processing")
		}

		if err := s.deducter.ConfirmDeduction(ctx, tx, order.ID); err != nil {
			return err
		}

		if err := s.cartRepo.WithTx(tx).ClearByUser(ctx, order.UserID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		return s.notifier.CreateInTx(ctx, tx, notifications.CreateInput{
			UserID:  order.UserID,
			Type:    enums.NotificationTypeOrderConfirmed,
			Title:   "Order confirmed",
			Message: fmt.Sprintf("Payment received for order %s.", order.ID),
		})
	})
	if err != nil {
		return err
	}

	if replay {
		s.logg.Info(lctx, "webhook replay ignored, payment already reconciled")
		return nil
	}

	lctx = s.logg.WithOrderID(lctx, order.ID.String())
	s.logg.Info(lctx, "payment reconciled, order moved to processing")
	s.sendConfirmation(lctx, order)
	return nil
}

// sendConfirmation runs after commit. Mail is best effort; the payment truth
// is already durable and a mail outage must not make the gateway retry.
func (s *service) sendConfirmation(ctx context.Context, order *models.Order) {
	user, err := s.usersRepo.FindByID(ctx, order.UserID)
	if err != nil {
		s.logg.Error(ctx, "load user for confirmation mail", err)
		return
	}
	err = s.mailer.SendOrderConfirmation(ctx, user.Email, order.ID.String(), order.TotalMinor, order.Currency)
	if err != nil {
		s.logg.Error(ctx, "send confirmation mail", err)
	}
}
