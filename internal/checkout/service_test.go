package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/internal/address"
	"github.com/velostore/storefront-backend/internal/cart"
	"github.com/velostore/storefront-backend/internal/inventory"
	"github.com/velostore/storefront-backend/internal/orders"
	"github.com/velostore/storefront-backend/internal/payments"
	"github.com/velostore/storefront-backend/internal/products"
	"github.com/velostore/storefront-backend/pkg/db"
	"github.com/velostore/storefront-backend/pkg/db/models"
	"github.com/velostore/storefront-backend/pkg/enums"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/logger"
)

type fakeIntents struct {
	calls int
	fail  bool
}

func (f *fakeIntents) CreateIntent(ctx context.Context, orderID, userID uuid.UUID) (*payments.Intent, error) {
	f.calls++
	if f.fail {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway unavailable")
	}
	return &payments.Intent{
		PaymentID:      uuid.New(),
		GatewayOrderID: "order_test_" + orderID.String()[:8],
		GatewayKeyID:   "rzp_test_key",
		AmountMinor:    55500,
		Currency:       "INR",
		Status:         enums.PaymentStatusPending,
	}, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
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
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB, intents IntentCreator) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "checkout-test"})

	productsRepo := products.NewRepository(conn)
	cartSvc, err := cart.NewService(cart.NewRepository(conn), productsRepo)
	require.NoError(t, err)
	addressSvc, err := address.NewService(conn)
	require.NoError(t, err)
	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Repo:   inventory.NewRepository(conn),
		Logger: logg,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		OrdersRepo: orders.NewRepository(conn),
		Catalog:    productsRepo,
		Cart:       cartSvc,
		Addresses:  addressSvc,
		Reserver:   inventorySvc,
		Intents:    intents,
		Tx:         db.NewWithConn(conn),
		Logger:     logg,
	})
	require.NoError(t, err)
	return svc
}

func seedProduct(t *testing.T, conn *gorm.DB, priceMinor int64, stock int) *models.Product {
	t.Helper()
	product := models.Product{
		SKU:            "SKU-" + uuid.NewString()[:8],
		Title:          "Cold Brew Kit",
		UnitPriceMinor: priceMinor,
		StockOnHand:    stock,
		Active:         true,
	}
	require.NoError(t, conn.Create(&product).Error)
	return &product
}

func seedAddress(t *testing.T, conn *gorm.DB, userID uuid.UUID) *models.Address {
	t.Helper()
	addr := models.Address{
		UserID:     userID,
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Country:    "IN",
	}
	require.NoError(t, conn.Create(&addr).Error)
	return &addr
}

func TestExecuteCreatesOrderHoldsAndIntent(t *testing.T) {
	conn := newTestDB(t)
	intents := &fakeIntents{}
	svc := newTestService(t, conn, intents)
	ctx := context.Background()

	userID := uuid.New()
	product := seedProduct(t, conn, 25000, 10)
	addr := seedAddress(t, conn, userID)

	result, err := svc.Execute(ctx, userID, Input{
		Items:             []ItemInput{{ProductID: product.ID, Qty: 2}},
		ShippingAddressID: &addr.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	require.NotNil(t, result.PaymentIntent)

	assert.Equal(t, enums.OrderStatusPending, result.Order.Status)
	assert.Equal(t, int64(50000), result.Order.SubtotalMinor)
	assert.Equal(t, int64(1500), result.Order.TaxMinor)
	assert.Equal(t, int64(4000), result.Order.ShippingFeeMinor)
	assert.Equal(t, int64(55500), result.Order.TotalMinor)
	assert.Equal(t, addr.ID, result.Order.BillingAddressID)
	require.Len(t, result.Order.Items, 1)
	assert.Equal(t, "Cold Brew Kit", result.Order.Items[0].Name)
	assert.Equal(t, int64(25000), result.Order.Items[0].UnitPriceMinor)

	var reservations []models.InventoryReservation
	require.NoError(t, conn.Where("order_id = ?", result.Order.ID).Find(&reservations).Error)
	require.Len(t, reservations, 1)
	assert.Equal(t, 2, reservations[0].Qty)

	// stock on hand is untouched until payment confirms the deduction
	var stored models.Product
	require.NoError(t, conn.First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, 10, stored.StockOnHand)
	assert.Equal(t, 1, intents.calls)
}

func TestExecuteFallsBackToPersistedCart(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, &fakeIntents{})
	ctx := context.Background()

	userID := uuid.New()
	product := seedProduct(t, conn, 10000, 5)
	addr := seedAddress(t, conn, userID)
	require.NoError(t, conn.Create(&models.CartItem{
		UserID:    userID,
		ProductID: product.ID,
		Qty:       3,
	}).Error)

	result, err := svc.Execute(ctx, userID, Input{ShippingAddressID: &addr.ID})
	require.NoError(t, err)
	require.Len(t, result.Order.Items, 1)
	assert.Equal(t, 3, result.Order.Items[0].Qty)

	// checkout must not clear the cart; that happens when payment lands
	var cartCount int64
	require.NoError(t, conn.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&cartCount).Error)
	assert.Equal(t, int64(1), cartCount)
}

func TestExecuteRejectsEmptyCart(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, &fakeIntents{})

	userID := uuid.New()
	addr := seedAddress(t, conn, userID)

	_, err := svc.Execute(context.Background(), userID, Input{ShippingAddressID: &addr.ID})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestExecuteShortfallLeavesNothingBehind(t *testing.T) {
	conn := newTestDB(t)
	intents := &fakeIntents{}
	svc := newTestService(t, conn, intents)
	ctx := context.Background()

	userID := uuid.New()
	product := seedProduct(t, conn, 25000, 1)
	addr := seedAddress(t, conn, userID)

	_, err := svc.Execute(ctx, userID, Input{
		Items:             []ItemInput{{ProductID: product.ID, Qty: 3}},
		ShippingAddressID: &addr.ID,
	})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	var orderCount, reservationCount int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&orderCount).Error)
	require.NoError(t, conn.Model(&models.InventoryReservation{}).Count(&reservationCount).Error)
	assert.Equal(t, int64(0), orderCount)
	assert.Equal(t, int64(0), reservationCount)
	assert.Equal(t, 0, intents.calls)
}

func TestExecuteCompensatesWhenIntentFails(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, &fakeIntents{fail: true})
	ctx := context.Background()

	userID := uuid.New()
	product := seedProduct(t, conn, 25000, 10)
	addr := seedAddress(t, conn, userID)

	_, err := svc.Execute(ctx, userID, Input{
		Items:             []ItemInput{{ProductID: product.ID, Qty: 2}},
		ShippingAddressID: &addr.ID,
	})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())

	var orderCount, reservationCount int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&orderCount).Error)
	require.NoError(t, conn.Model(&models.InventoryReservation{}).Count(&reservationCount).Error)
	assert.Equal(t, int64(0), orderCount)
	assert.Equal(t, int64(0), reservationCount)
}

func TestExecuteEnforcesAddressOwnership(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, &fakeIntents{})
	ctx := context.Background()

	userID := uuid.New()
	product := seedProduct(t, conn, 25000, 10)
	strangerAddr := seedAddress(t, conn, uuid.New())

	_, err := svc.Execute(ctx, userID, Input{
		Items:             []ItemInput{{ProductID: product.ID, Qty: 1}},
		ShippingAddressID: &strangerAddr.ID,
	})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	var orderCount int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(0), orderCount)
}

func TestExecuteCreatesInlineAddress(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, &fakeIntents{})
	ctx := context.Background()

	userID := uuid.New()
	product := seedProduct(t, conn, 25000, 10)

	result, err := svc.Execute(ctx, userID, Input{
		Items: []ItemInput{{ProductID: product.ID, Qty: 1}},
		ShippingAddress: &address.Input{
			Line1:      "44 Residency Road",
			City:       "Bengaluru",
			State:      "KA",
			PostalCode: "560025",
		},
	})
	require.NoError(t, err)

	var addr models.Address
	require.NoError(t, conn.First(&addr, "id = ?", result.Order.ShippingAddressID).Error)
	assert.Equal(t, userID, addr.UserID)
	assert.Equal(t, "44 Residency Road", addr.Line1)
	assert.Equal(t, result.Order.ShippingAddressID, result.Order.BillingAddressID)
}

func TestExecuteRejectsInactiveProduct(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, &fakeIntents{})
	ctx := context.Background()

	userID := uuid.New()
	product := seedProduct(t, conn, 25000, 10)
	require.NoError(t, conn.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Update("active", false).Error)
	addr := seedAddress(t, conn, userID)

	_, err := svc.Execute(ctx, userID, Input{
		Items:             []ItemInput{{ProductID: product.ID, Qty: 1}},
		ShippingAddressID: &addr.ID,
	})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
