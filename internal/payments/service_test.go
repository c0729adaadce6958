package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/internal/orders"
	"github.com/velostore/storefront-backend/pkg/db"
	"github.com/velostore/storefront-backend/pkg/db/models"
	"github.com/velostore/storefront-backend/pkg/enums"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/logger"
	"github.com/velostore/storefront-backend/pkg/razorpay"
)

const testClientSecret = "client-secret"

type fakeGateway struct {
	createCalls int
	refundCalls int
	failCreate  error
	failRefund  error
	lastRefund  struct {
		paymentID string
		amount    int64
	}
}

func (f *fakeGateway) CreateOrder(ctx context.Context, params razorpay.OrderCreateParams) (*razorpay.Order, error) {
	f.createCalls++
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	return &razorpay.Order{
		ID:          "order_gw_" + uuid.NewString()[:8],
		AmountMinor: params.AmountMinor,
		Currency:    params.Currency,
		Receipt:     params.Receipt,
		Status:      "created",
	}, nil
}

func (f *fakeGateway) RefundPayment(ctx context.Context, paymentID string, amountMinor int64, notes map[string]any) (*razorpay.Refund, error) {
	f.refundCalls++
	if f.failRefund != nil {
		return nil, f.failRefund
	}
	f.lastRefund.paymentID = paymentID
	f.lastRefund.amount = amountMinor
	return &razorpay.Refund{
		ID:          "rfnd_" + uuid.NewString()[:8],
		PaymentID:   paymentID,
		AmountMinor: amountMinor,
		Status:      "processed",
	}, nil
}

func (f *fakeGateway) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	expected := razorpay.SignPayload([]byte(gatewayOrderID+"|"+gatewayPaymentID), testClientSecret)
	return signature == expected
}

func (f *fakeGateway) KeyID() string    { return "rzp_test_key" }
func (f *fakeGateway) Currency() string { return "INR" }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.Payment{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB, gateway *fakeGateway) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(conn),
		Orders:  orders.NewRepository(conn),
		Gateway: gateway,
		Tx:      db.NewWithConn(conn),
		Logger:  logger.New(logger.Options{ServiceName: "payments-test"}),
	})
	require.NoError(t, err)
	return svc
}

func seedOrder(t *testing.T, conn *gorm.DB, userID uuid.UUID, status enums.OrderStatus) *models.Order {
	t.Helper()
	address := models.Address{
		UserID:     userID,
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Country:    "IN",
	}
	require.NoError(t, conn.Create(&address).Error)

	order := models.Order{
		UserID:            userID,
		Status:            status,
		PaymentStatus:     enums.PaymentStatusPending,
		SubtotalMinor:     50000,
		TaxMinor:          1500,
		ShippingFeeMinor:  4000,
		TotalMinor:        55500,
		Currency:          "INR",
		ShippingAddressID: address.ID,
		BillingAddressID:  address.ID,
	}
	require.NoError(t, conn.Create(&order).Error)
	return &order
}

func TestCreateIntentPersistsPendingPayment(t *testing.T) {
	conn := newTestDB(t)
	gateway := &fakeGateway{}
	svc := newTestService(t, conn, gateway)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.OrderStatusPending)

	intent, err := svc.CreateIntent(ctx, order.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, gateway.createCalls)
	assert.Equal(t, int64(55500), intent.AmountMinor)
	assert.Equal(t, "INR", intent.Currency)
	assert.Equal(t, "rzp_test_key", intent.GatewayKeyID)
	assert.Equal(t, enums.PaymentStatusPending, intent.Status)

	var payment models.Payment
	require.NoError(t, conn.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, intent.GatewayOrderID, payment.GatewayOrderID)
	require.Len(t, payment.GatewayEvents, 1)
	assert.Equal(t, enums.GatewayEventIntentCreated, payment.GatewayEvents[0].Event)
}

func TestCreateIntentIsIdempotent(t *testing.T) {
	conn := newTestDB(t)
	gateway := &fakeGateway{}
	svc := newTestService(t, conn, gateway)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.OrderStatusPending)

	first, err := svc.CreateIntent(ctx, order.ID, userID)
	require.NoError(t, err)
	second, err := svc.CreateIntent(ctx, order.ID, userID)
	require.NoError(t, err)

	assert.Equal(t, first.GatewayOrderID, second.GatewayOrderID)
	assert.Equal(t, 1, gateway.createCalls, "second call must not hit the gateway")
}

func TestCreateIntentRefundedShortCircuit(t *testing.T) {
	conn := newTestDB(t)
	gateway := &fakeGateway{}
	svc := newTestService(t, conn, gateway)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.OrderStatusPending)
	require.NoError(t, conn.Create(&models.Payment{
		OrderID:        order.ID,
		GatewayOrderID: "order_gw_refunded",
		AmountMinor:    55500,
		Currency:       "INR",
		Status:         enums.PaymentStatusRefunded,
	}).Error)

	intent, err := svc.CreateIntent(ctx, order.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, "order_gw_refunded", intent.GatewayOrderID)
	assert.Equal(t, enums.PaymentStatusRefunded, intent.Status)
	assert.Zero(t, gateway.createCalls)
}

func TestCreateIntentRejectsUnpayableOrder(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, &fakeGateway{})
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.OrderStatusProcessing)

	_, err := svc.CreateIntent(ctx, order.ID, userID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCreateIntentGatewayFailureLeavesNoRecord(t *testing.T) {
	conn := newTestDB(t)
	gateway := &fakeGateway{failCreate: pkgerrors.New(pkgerrors.CodeDependency, "gateway down")}
	svc := newTestService(t, conn, gateway)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.OrderStatusPending)

	_, err := svc.CreateIntent(ctx, order.ID, userID)
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestVerifyClientSignatureMarksPaymentOnly(t *testing.T) {
	conn := newTestDB(t)
	gateway := &fakeGateway{}
	svc := newTestService(t, conn, gateway)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.OrderStatusPending)
	intent, err := svc.CreateIntent(ctx, order.ID, userID)
	require.NoError(t, err)

	signature := razorpay.SignPayload([]byte(intent.GatewayOrderID+"|pay_123"), testClientSecret)
	require.NoError(t, svc.VerifyClientSignature(ctx, VerifyInput{
		OrderID:          order.ID,
		UserID:           userID,
		GatewayPaymentID: "pay_123",
		Signature:        signature,
	}))

	var payment models.Payment
	require.NoError(t, conn.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusPaid, payment.Status)
	require.NotNil(t, payment.GatewayPaymentID)
	assert.Equal(t, "pay_123", *payment.GatewayPaymentID)
	require.Len(t, payment.GatewayEvents, 2)
	assert.Equal(t, enums.GatewayEventClientVerified, payment.GatewayEvents[1].Event)

	// advisory only: the order itself is untouched
	var updated models.Order
	require.NoError(t, conn.First(&updated, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, updated.Status)
	assert.Equal(t, enums.PaymentStatusPending, updated.PaymentStatus)
}

func TestVerifyClientSignatureMismatch(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, &fakeGateway{})
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.OrderStatusPending)
	_, err := svc.CreateIntent(ctx, order.ID, userID)
	require.NoError(t, err)

	err = svc.VerifyClientSignature(ctx, VerifyInput{
		OrderID:          order.ID,
		UserID:           userID,
		GatewayPaymentID: "pay_123",
		Signature:        "forged",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	var payment models.Payment
	require.NoError(t, conn.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
}

func TestVerifyClientSignatureAlreadyPaidIsNoOp(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, &fakeGateway{})
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.OrderStatusPending)
	require.NoError(t, conn.Create(&models.Payment{
		OrderID:        order.ID,
		GatewayOrderID: "order_gw_paid",
		AmountMinor:    55500,
		Currency:       "INR",
		Status:         enums.PaymentStatusPaid,
	}).Error)

	// even a garbage signature succeeds once the payment is PAID
	require.NoError(t, svc.VerifyClientSignature(ctx, VerifyInput{
		OrderID:          order.ID,
		UserID:           userID,
		GatewayPaymentID: "pay_123",
		Signature:        "irrelevant",
	}))
}

func TestRefundHappyPath(t *testing.T) {
	conn := newTestDB(t)
	gateway := &fakeGateway{}
	svc := newTestService(t, conn, gateway)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.OrderStatusProcessing)
	gatewayPaymentID := "pay_captured"
	payment := models.Payment{
		OrderID:          order.ID,
		GatewayOrderID:   "order_gw_paid",
		GatewayPaymentID: &gatewayPaymentID,
		AmountMinor:      55500,
		Currency:         "INR",
		Status:           enums.PaymentStatusPaid,
	}
	require.NoError(t, conn.Create(&payment).Error)

	require.NoError(t, svc.Refund(ctx, RefundInput{PaymentID: payment.ID, Reason: "customer return"}))
	assert.Equal(t, 1, gateway.refundCalls)
	assert.Equal(t, gatewayPaymentID, gateway.lastRefund.paymentID)
	assert.Equal(t, int64(55500), gateway.lastRefund.amount)

	var updatedPayment models.Payment
	require.NoError(t, conn.First(&updatedPayment, "id = ?", payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusRefunded, updatedPayment.Status)
	require.NotEmpty(t, updatedPayment.GatewayEvents)
	assert.Equal(t, enums.GatewayEventRefundIssued, updatedPayment.GatewayEvents[len(updatedPayment.GatewayEvents)-1].Event)

	var updatedOrder models.Order
	require.NoError(t, conn.First(&updatedOrder, "id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusRefunded, updatedOrder.PaymentStatus)
}

func TestRefundRejectsUnpaidPayment(t *testing.T) {
	conn := newTestDB(t)
	gateway := &fakeGateway{}
	svc := newTestService(t, conn, gateway)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.OrderStatusPending)
	payment := models.Payment{
		OrderID:        order.ID,
		GatewayOrderID: "order_gw_pending",
		AmountMinor:    55500,
		Currency:       "INR",
		Status:         enums.PaymentStatusPending,
	}
	require.NoError(t, conn.Create(&payment).Error)

	err := svc.Refund(ctx, RefundInput{PaymentID: payment.ID})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Zero(t, gateway.refundCalls)
}

func TestRefundRejectsExcessAmount(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, &fakeGateway{})
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.OrderStatusProcessing)
	gatewayPaymentID := "pay_captured"
	payment := models.Payment{
		OrderID:          order.ID,
		GatewayOrderID:   "order_gw_paid2",
		GatewayPaymentID: &gatewayPaymentID,
		AmountMinor:      55500,
		Currency:         "INR",
		Status:           enums.PaymentStatusPaid,
	}
	require.NoError(t, conn.Create(&payment).Error)

	err := svc.Refund(ctx, RefundInput{PaymentID: payment.ID, AmountMinor: 60000})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
