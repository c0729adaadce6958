package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/internal/address"
	"github.com/velostore/storefront-backend/internal/cart"
	checkoutsvc "github.com/velostore/storefront-backend/internal/checkout"
	"github.com/velostore/storefront-backend/internal/notifications"
	"github.com/velostore/storefront-backend/internal/orders"
	"github.com/velostore/storefront-backend/internal/payments"
	"github.com/velostore/storefront-backend/internal/products"
	razorpaywebhook "github.com/velostore/storefront-backend/internal/webhooks/razorpay"
	pkgauth "github.com/velostore/storefront-backend/pkg/auth"
	"github.com/velostore/storefront-backend/pkg/config"
	"github.com/velostore/storefront-backend/pkg/db/models"
	"github.com/velostore/storefront-backend/pkg/enums"
	"github.com/velostore/storefront-backend/pkg/logger"
	"github.com/velostore/storefront-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubProductsService struct{}

func (stubProductsService) Create(ctx context.Context, input products.CreateInput) (*models.Product, error) {
	return &models.Product{}, nil
}

func (stubProductsService) Get(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	return &models.Product{}, nil
}

func (stubProductsService) List(ctx context.Context, params pagination.Params, activeOnly bool) (*products.PageResult, error) {
	return &products.PageResult{}, nil
}

func (stubProductsService) Update(ctx context.Context, productID uuid.UUID, input products.UpdateInput) (*models.Product, error) {
	return &models.Product{}, nil
}

func (stubProductsService) Delete(ctx context.Context, productID uuid.UUID) error {
	return nil
}

type stubOrdersService struct{}

func (stubOrdersService) Get(ctx context.Context, orderID, userID uuid.UUID) (*orders.Detail, error) {
	return &orders.Detail{}, nil
}

func (stubOrdersService) GetAny(ctx context.Context, orderID uuid.UUID) (*orders.Detail, error) {
	return &orders.Detail{}, nil
}

func (stubOrdersService) ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params, filters orders.ListFilters) (*orders.List, error) {
	return &orders.List{}, nil
}

func (stubOrdersService) Cancel(ctx context.Context, input orders.CancelInput) error {
	return nil
}

func (stubOrdersService) RequestReturn(ctx context.Context, input orders.ReturnInput) error {
	return nil
}

func (stubOrdersService) MarkShipped(ctx context.Context, input orders.FulfillmentInput) error {
	return nil
}

func (stubOrdersService) MarkDelivered(ctx context.Context, input orders.FulfillmentInput) error {
	return nil
}

func (stubOrdersService) Restock(ctx context.Context, input orders.FulfillmentInput) error {
	return nil
}

type stubCartService struct{}

func (stubCartService) SetItem(ctx context.Context, userID, productID uuid.UUID, qty int) error {
	return nil
}

func (stubCartService) Get(ctx context.Context, userID uuid.UUID) (*cart.View, error) {
	return &cart.View{}, nil
}

func (stubCartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	return nil
}

func (stubCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (stubCartService) Items(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	return nil, nil
}

type stubNotificationsService struct {
	lastUnreadOnly bool
}

func (s *stubNotificationsService) Create(ctx context.Context, input notifications.CreateInput) error {
	return nil
}

func (s *stubNotificationsService) CreateInTx(ctx context.Context, tx *gorm.DB, input notifications.CreateInput) error {
	return nil
}

func (s *stubNotificationsService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	s.lastUnreadOnly = unreadOnly
	return []models.Notification{}, nil
}

func (s *stubNotificationsService) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	return nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) Execute(ctx context.Context, userID uuid.UUID, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
	return &checkoutsvc.Result{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	return newTestRouterNotify(cfg, &stubNotificationsService{})
}

func newTestRouterNotify(cfg *config.Config, notify notifications.Service) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            stubPinger{},
		Checkout:      stubCheckoutService{},
		Payments:      payments.Service(nil),
		Orders:        stubOrdersService{},
		Products:      stubProductsService{},
		Cart:          stubCartService{},
		Addresses:     address.Service(nil),
		Notifications: notify,
		Webhooks:      razorpaywebhook.Service(nil),
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "shopper@example.com",
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestCatalogIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for public catalog got %d", resp.Code)
	}
}

func TestOrdersRequireJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestOrdersSucceedWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for authed orders got %d", resp.Code)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	customer := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders/"+uuid.NewString(), nil)
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, customer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders/"+uuid.NewString(), nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestNotificationsListPassesUnreadFilter(t *testing.T) {
	cfg := testConfig()
	notify := &stubNotificationsService{}
	router := newTestRouterNotify(cfg, notify)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?unread_only=true", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for notifications list got %d", resp.Code)
	}
	if !notify.lastUnreadOnly {
		t.Fatal("unread_only query flag was not forwarded to the service")
	}
}

func TestHealthzIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for healthz got %d", resp.Code)
	}
}
