package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/pkg/db/models"
	"github.com/velostore/storefront-backend/pkg/enums"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/logger"
	"github.com/velostore/storefront-backend/pkg/razorpay"
	"github.com/velostore/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OrderFinder loads orders with ownership enforced; satisfied by orders.Repository.
type OrderFinder interface {
	FindByIDForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
}

// Gateway is the remote payment surface the service depends on.
type Gateway interface {
	CreateOrder(ctx context.Context, params razorpay.OrderCreateParams) (*razorpay.Order, error)
	RefundPayment(ctx context.Context, paymentID string, amountMinor int64, notes map[string]any) (*razorpay.Refund, error)
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	KeyID() string
	Currency() string
}

// Intent is what the client needs to open the hosted gateway checkout.
type Intent struct {
	PaymentID      uuid.UUID           `json:"payment_id"`
	GatewayOrderID string              `json:"gateway_order_id"`
	GatewayKeyID   string              `json:"gateway_key_id"`
	AmountMinor    int64               `json:"amount_minor"`
	Currency       string              `json:"currency"`
	Status         enums.PaymentStatus `json:"status"`
}

// VerifyInput carries the client-side confirmation callback fields.
type VerifyInput struct {
	OrderID          uuid.UUID
	UserID           uuid.UUID
	GatewayPaymentID string
	Signature        string
}

// RefundInput captures an admin refund request.
type RefundInput struct {
	PaymentID   uuid.UUID
	AmountMinor int64
	Reason      string
}

// Service wraps the payment gateway with local payment records.
type Service interface {
	CreateIntent(ctx context.Context, orderID, userID uuid.UUID) (*Intent, error)
	VerifyClientSignature(ctx context.Context, input VerifyInput) error
	Refund(ctx context.Context, input RefundInput) error
}

type service struct {
	repo    Repository
	orders  OrderFinder
	gateway Gateway
	tx      txRunner
	logg    *logger.Logger
	now     func() time.Time
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repo    Repository
	Orders  OrderFinder
	Gateway Gateway
	Tx      txRunner
	Logger  *logger.Logger
	Now     func() time.Time
}

// NewService builds a payments service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order finder required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
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
		repo:    params.Repo,
		orders:  params.Orders,
		gateway: params.Gateway,
		tx:      params.Tx,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// CreateIntent is idempotent. An existing payment record short-circuits the
// remote call and its stored details are returned unchanged, including when the
// record is REFUNDED (the legacy behavior treats it like PAID; a refunded order
// arguably should be re-payable, but the intent here is ambiguous so the
// short-circuit stands and is logged).
func (s *service) CreateIntent(ctx context.Context, orderID, userID uuid.UUID) (*Intent, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	order, err := s.orders.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	existing, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if existing != nil {
		if existing.Status == enums.PaymentStatusRefunded {
			lctx := s.logg.WithOrderID(ctx, orderID.String())
			s.logg.Warn(lctx, "intent requested for refunded payment, returning stored details")
		}
		return s.toIntent(existing), nil
	}

	if order.Status != enums.OrderStatusPending || order.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not payable")
	}

	gatewayOrder, err := s.gateway.CreateOrder(ctx, razorpay.OrderCreateParams{
		AmountMinor: order.TotalMinor,
		Currency:    order.Currency,
		Receipt:     order.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		OrderID:        order.ID,
		GatewayOrderID: gatewayOrder.ID,
		AmountMinor:    order.TotalMinor,
		Currency:       order.Currency,
		Status:         enums.PaymentStatusPending,
		GatewayEvents: types.GatewayEventLog{}.Append(enums.GatewayEventIntentCreated, s.now(), map[string]any{
			"gateway_order_id": gatewayOrder.ID,
			"amount_minor":     order.TotalMinor,
		}),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.toIntent(payment), nil
}

// VerifyClientSignature is the advisory confirmation from the browser. On a
// valid signature the payment is marked PAID, nothing else changes: inventory,
// order state, and cart wait for the webhook, which remains the single writer
// of payment truth downstream of this record.
func (s *service) VerifyClientSignature(ctx context.Context, input VerifyInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.GatewayPaymentID == "" || input.Signature == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway payment id and signature required")
	}

	if _, err := s.orders.FindByIDForUser(ctx, input.OrderID, input.UserID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	payment, err := s.repo.FindByOrderID(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	if payment.Status == enums.PaymentStatusPaid {
		return nil
	}

	if !s.gateway.VerifyPaymentSignature(payment.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		return pkgerrors.New(pkgerrors.CodeValidation, "signature mismatch")
	}

	events := payment.GatewayEvents.Append(enums.GatewayEventClientVerified, s.now(), map[string]any{
		"gateway_payment_id": input.GatewayPaymentID,
	})
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, payment.ID, map[string]any{
			"status":             enums.PaymentStatusPaid,
			"gateway_payment_id": input.GatewayPaymentID,
			"gateway_events":     events,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		return nil
	})
}

// Refund moves money back; it never restocks. Returning goods to the shelf is
// the order return flow's explicit decision, not a side effect of money moving.
func (s *service) Refund(ctx context.Context, input RefundInput) error {
	if input.PaymentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	payment, err := s.repo.FindByID(ctx, input.PaymentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status != enums.PaymentStatusPaid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only paid payments can be refunded")
	}
	if payment.GatewayPaymentID == nil || *payment.GatewayPaymentID == "" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment has no captured gateway payment id")
	}

	amount := input.AmountMinor
	if amount <= 0 {
		amount = payment.AmountMinor
	}
	if amount > payment.AmountMinor {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds captured amount")
	}

	notes := map[string]any{}
	if input.Reason != "" {
		notes["reason"] = input.Reason
	}
	refund, err := s.gateway.RefundPayment(ctx, *payment.GatewayPaymentID, amount, notes)
	if err != nil {
		return err
	}

	events := payment.GatewayEvents.Append(enums.GatewayEventRefundIssued, s.now(), map[string]any{
		"refund_id":    refund.ID,
		"amount_minor": amount,
		"reason":       input.Reason,
	})
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, payment.ID, map[string]any{
			"status":         enums.PaymentStatusRefunded,
			"gateway_events": events,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		if err := tx.WithContext(ctx).
			Model(&models.Order{}).
			Where("id = ?", payment.OrderID).
			Update("payment_status", enums.PaymentStatusRefunded).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return nil
	})
}

func (s *service) toIntent(payment *models.Payment) *Intent {
	return &Intent{
		PaymentID:      payment.ID,
		GatewayOrderID: payment.GatewayOrderID,
		GatewayKeyID:   s.gateway.KeyID(),
		AmountMinor:    payment.AmountMinor,
		Currency:       payment.Currency,
		Status:         payment.Status,
	}
}
