package razorpay

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/internal/cart"
	"github.com/velostore/storefront-backend/internal/inventory"
	"github.com/velostore/storefront-backend/internal/notifications"
	"github.com/velostore/storefront-backend/internal/orders"
	"github.com/velostore/storefront-backend/internal/payments"
	"github.com/velostore/storefront-backend/internal/users"
	"github.com/velostore/storefront-backend/pkg/db"
	"github.com/velostore/storefront-backend/pkg/db/models"
	"github.com/velostore/storefront-backend/pkg/enums"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/logger"
)

type mailRecorder struct {
	sent []string
}

func (m *mailRecorder) SendOrderConfirmation(ctx context.Context, toEmail string, orderID string, totalMinor int64, currency string) error {
	m.sent = append(m.sent, toEmail)
	return nil
}

type failingNotifier struct{}

func (f *failingNotifier) CreateInTx(ctx context.Context, tx *gorm.DB, input notifications.CreateInput) error {
	return pkgerrors.New(pkgerrors.CodeDependency, "notification store down")
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:webhooks_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Address{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.InventoryReservation{},
		&models.Payment{},
		&models.Notification{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB, mailer notifications.Mailer, notifier Notifier) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "webhooks-test"})

	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Repo:   inventory.NewRepository(conn),
		Logger: logg,
	})
	require.NoError(t, err)

	if notifier == nil {
		notificationsSvc, err := notifications.NewService(notifications.NewRepository(conn))
		require.NoError(t, err)
		notifier = notificationsSvc
	}

	svc, err := NewService(ServiceParams{
		PaymentsRepo: payments.NewRepository(conn),
		OrdersRepo:   orders.NewRepository(conn),
		CartRepo:     cart.NewRepository(conn),
		UsersRepo:    users.NewRepository(conn),
		Deducter:     inventorySvc,
		Notifier:     notifier,
		Mailer:       mailer,
		Tx:           db.NewWithConn(conn),
		Logger:       logg,
	})
	require.NoError(t, err)
	return svc
}

type fixture struct {
	user    models.User
	product models.Product
	order   models.Order
	payment models.Payment
}

func seedPaidCheckout(t *testing.T, conn *gorm.DB) fixture {
	t.Helper()

	user := models.User{Email: "asha@example.com", Name: "Asha", Role: enums.UserRoleCustomer}
	require.NoError(t, conn.Create(&user).Error)

	product := models.Product{
		SKU:            "SKU-" + uuid.NewString()[:8],
		Title:          "Pour Over Set",
		UnitPriceMinor: 25000,
		StockOnHand:    10,
		Active:         true,
	}
	require.NoError(t, conn.Create(&product).Error)

	address := models.Address{
		UserID:     user.ID,
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Country:    "IN",
	}
	require.NoError(t, conn.Create(&address).Error)

	order := models.Order{
		UserID:            user.ID,
		Status:            enums.OrderStatusPending,
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

	payment := models.Payment{
		OrderID:        order.ID,
		Gateway:        "razorpay",
		GatewayOrderID: "order_" + uuid.NewString()[:12],
		AmountMinor:    55500,
		Currency:       "INR",
		Status:         enums.PaymentStatusPending,
	}
	require.NoError(t, conn.Create(&payment).Error)

	require.NoError(t, conn.Create(&models.InventoryReservation{
		ProductID: product.ID,
		OrderID:   order.ID,
		Qty:       2,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}).Error)
	require.NoError(t, conn.Create(&models.CartItem{
		UserID:    user.ID,
		ProductID: product.ID,
		Qty:       2,
	}).Error)

	return fixture{user: user, product: product, order: order, payment: payment}
}

func capturedEvent(gatewayOrderID string) Event {
	var event Event
	event.Type = EventPaymentCaptured
	event.Payload.Payment.Entity = PaymentEntity{
		ID:          "pay_" + uuid.NewString()[:12],
		OrderID:     gatewayOrderID,
		AmountMinor: 55500,
		Currency:    "INR",
		Status:      "captured",
		Method:      "upi",
	}
	return event
}

func TestHandleEventReconcilesPayment(t *testing.T) {
	conn := newTestDB(t)
	mailer := &mailRecorder{}
	svc := newTestService(t, conn, mailer, nil)
	ctx := context.Background()

	fx := seedPaidCheckout(t, conn)
	event := capturedEvent(fx.payment.GatewayOrderID)

	require.NoError(t, svc.HandleEvent(ctx, event))

	var payment models.Payment
	require.NoError(t, conn.First(&payment, "id = ?", fx.payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusPaid, payment.Status)
	require.NotNil(t, payment.GatewayPaymentID)
	assert.Equal(t, event.entity().ID, *payment.GatewayPaymentID)
	require.Len(t, payment.GatewayEvents, 1)
	assert.Equal(t, enums.GatewayEventWebhookCapture, payment.GatewayEvents[0].Event)

	var order models.Order
	require.NoError(t, conn.First(&order, "id = ?", fx.order.ID).Error)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)

	var product models.Product
	require.NoError(t, conn.First(&product, "id = ?", fx.product.ID).Error)
	assert.Equal(t, 8, product.StockOnHand)

	var reservationCount, cartCount, notificationCount int64
	require.NoError(t, conn.Model(&models.InventoryReservation{}).Where("order_id = ?", fx.order.ID).Count(&reservationCount).Error)
	require.NoError(t, conn.Model(&models.CartItem{}).Where("user_id = ?", fx.user.ID).Count(&cartCount).Error)
	require.NoError(t, conn.Model(&models.Notification{}).Where("user_id = ?", fx.user.ID).Count(&notificationCount).Error)
	assert.Equal(t, int64(0), reservationCount)
	assert.Equal(t, int64(0), cartCount)
	assert.Equal(t, int64(1), notificationCount)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "asha@example.com", mailer.sent[0])
}

func TestHandleEventReplayIsNoOp(t *testing.T) {
	conn := newTestDB(t)
	mailer := &mailRecorder{}
	svc := newTestService(t, conn, mailer, nil)
	ctx := context.Background()

	fx := seedPaidCheckout(t, conn)
	event := capturedEvent(fx.payment.GatewayOrderID)

	require.NoError(t, svc.HandleEvent(ctx, event))
	require.NoError(t, svc.HandleEvent(ctx, event))

	var product models.Product
	require.NoError(t, conn.First(&product, "id = ?", fx.product.ID).Error)
	assert.Equal(t, 8, product.StockOnHand)

	var payment models.Payment
	require.NoError(t, conn.First(&payment, "id = ?", fx.payment.ID).Error)
	assert.Len(t, payment.GatewayEvents, 1)

	var notificationCount int64
	require.NoError(t, conn.Model(&models.Notification{}).Where("user_id = ?", fx.user.ID).Count(&notificationCount).Error)
	assert.Equal(t, int64(1), notificationCount)
	assert.Len(t, mailer.sent, 1)
}

func TestHandleEventIgnoresOtherEventTypes(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, &mailRecorder{}, nil)

	fx := seedPaidCheckout(t, conn)
	event := capturedEvent(fx.payment.GatewayOrderID)
	event.Type = "payment.failed"

	require.NoError(t, svc.HandleEvent(context.Background(), event))

	var payment models.Payment
	require.NoError(t, conn.First(&payment, "id = ?", fx.payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
}

func TestHandleEventMissingPaymentIsInternal(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, &mailRecorder{}, nil)

	err := svc.HandleEvent(context.Background(), capturedEvent("order_unknown"))
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInternal, typed.Code())
}

func TestHandleEventRollsBackOnPartialFailure(t *testing.T) {
	conn := newTestDB(t)
	mailer := &mailRecorder{}
	svc := newTestService(t, conn, mailer, &failingNotifier{})
	ctx := context.Background()

	fx := seedPaidCheckout(t, conn)

	err := svc.HandleEvent(ctx, capturedEvent(fx.payment.GatewayOrderID))
	require.Error(t, err)

	var payment models.Payment
	require.NoError(t, conn.First(&payment, "id = ?", fx.payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)

	var order models.Order
	require.NoError(t, conn.First(&order, "id = ?", fx.order.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, order.Status)

	var product models.Product
	require.NoError(t, conn.First(&product, "id = ?", fx.product.ID).Error)
	assert.Equal(t, 10, product.StockOnHand)

	var reservationCount, cartCount int64
	require.NoError(t, conn.Model(&models.InventoryReservation{}).Where("order_id = ?", fx.order.ID).Count(&reservationCount).Error)
	require.NoError(t, conn.Model(&models.CartItem{}).Where("user_id = ?", fx.user.ID).Count(&cartCount).Error)
	assert.Equal(t, int64(1), reservationCount)
	assert.Equal(t, int64(1), cartCount)
	assert.Empty(t, mailer.sent)
}

func TestHandleEventReconcilesAfterAdvisoryClientVerify(t *testing.T) {
	conn := newTestDB(t)
	mailer := &mailRecorder{}
	svc := newTestService(t, conn, mailer, nil)
	ctx := context.Background()

	fx := seedPaidCheckout(t, conn)

	// the browser confirmation marked the payment paid but touched nothing
	// else; the order is still pending and stock is still only reserved
	advisory := fx.payment.GatewayEvents.Append(enums.GatewayEventClientVerified, time.Now(), map[string]any{
		"gateway_payment_id": "pay_client",
	})
	require.NoError(t, conn.Model(&models.Payment{}).
		Where("id = ?", fx.payment.ID).
		Updates(map[string]any{
			"status":         enums.PaymentStatusPaid,
			"gateway_events": advisory,
		}).Error)

	require.NoError(t, svc.HandleEvent(ctx, capturedEvent(fx.payment.GatewayOrderID)))

	var payment models.Payment
	require.NoError(t, conn.First(&payment, "id = ?", fx.payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusPaid, payment.Status)
	assert.True(t, payment.GatewayEvents.Contains(enums.GatewayEventClientVerified))
	assert.True(t, payment.GatewayEvents.Contains(enums.GatewayEventWebhookCapture))

	var order models.Order
	require.NoError(t, conn.First(&order, "id = ?", fx.order.ID).Error)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)

	var product models.Product
	require.NoError(t, conn.First(&product, "id = ?", fx.product.ID).Error)
	assert.Equal(t, 8, product.StockOnHand)

	var cartCount int64
	require.NoError(t, conn.Model(&models.CartItem{}).Where("user_id = ?", fx.user.ID).Count(&cartCount).Error)
	assert.Equal(t, int64(0), cartCount)
	require.Len(t, mailer.sent, 1)
}

func TestHandleEventLeavesRefundedPaymentAlone(t *testing.T) {
	conn := newTestDB(t)
	mailer := &mailRecorder{}
	svc := newTestService(t, conn, mailer, nil)
	ctx := context.Background()

	fx := seedPaidCheckout(t, conn)
	require.NoError(t, conn.Model(&models.Payment{}).
		Where("id = ?", fx.payment.ID).
		Update("status", enums.PaymentStatusRefunded).Error)

	require.NoError(t, svc.HandleEvent(ctx, capturedEvent(fx.payment.GatewayOrderID)))

	var payment models.Payment
	require.NoError(t, conn.First(&payment, "id = ?", fx.payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusRefunded, payment.Status)

	var order models.Order
	require.NoError(t, conn.First(&order, "id = ?", fx.order.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Empty(t, mailer.sent)
}
