package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/velostore/storefront-backend/api/controllers"
	webhookcontrollers "github.com/velostore/storefront-backend/api/controllers/webhooks"
	"github.com/velostore/storefront-backend/api/middleware"
	"github.com/velostore/storefront-backend/internal/address"
	"github.com/velostore/storefront-backend/internal/cart"
	checkoutsvc "github.com/velostore/storefront-backend/internal/checkout"
	"github.com/velostore/storefront-backend/internal/notifications"
	"github.com/velostore/storefront-backend/internal/orders"
	"github.com/velostore/storefront-backend/internal/payments"
	"github.com/velostore/storefront-backend/internal/products"
	razorpaywebhook "github.com/velostore/storefront-backend/internal/webhooks/razorpay"
	"github.com/velostore/storefront-backend/pkg/config"
	"github.com/velostore/storefront-backend/pkg/logger"
	"github.com/velostore/storefront-backend/pkg/razorpay"
	"github.com/velostore/storefront-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Redis         *redis.Client
	Razorpay      *razorpay.Client
	Checkout      checkoutsvc.Service
	Payments      payments.Service
	Orders        orders.Service
	Products      products.Service
	Cart          cart.Service
	Addresses     address.Service
	Notifications notifications.Service
	Webhooks      razorpaywebhook.Service
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var cache controllers.Pinger
	var idempotencyStore redis.IdempotencyStore
	if d.Redis != nil {
		cache = d.Redis
		idempotencyStore = d.Redis
	}
	r.Get("/healthz", controllers.Health(d.DB, cache, logg))

	// Gateway webhooks authenticate by HMAC over the raw body, never by JWT.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(d.Webhooks, d.Razorpay, logg))
	})

	// Browsing the catalog needs no account.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(d.Products, logg))
		r.Get("/{productID}", controllers.GetProduct(d.Products, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Post("/checkout", controllers.Checkout(d.Checkout, logg))
		r.Post("/checkout/confirm", controllers.ConfirmPayment(d.Payments, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(d.Orders, logg))
			r.Get("/{orderID}", controllers.GetOrder(d.Orders, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(d.Orders, logg))
			r.Post("/{orderID}/return", controllers.ReturnOrder(d.Orders, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(d.Cart, logg))
			r.Put("/items", controllers.SetCartItem(d.Cart, logg))
			r.Delete("/items/{productID}", controllers.RemoveCartItem(d.Cart, logg))
			r.Delete("/", controllers.ClearCart(d.Cart, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Post("/", controllers.CreateAddress(d.Addresses, logg))
			r.Get("/", controllers.ListAddresses(d.Addresses, logg))
			r.Delete("/{addressID}", controllers.DeleteAddress(d.Addresses, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(d.Notifications, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(d.Notifications, logg))
		})
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminListProducts(d.Products, logg))
			r.Post("/", controllers.AdminCreateProduct(d.Products, logg))
			r.Patch("/{productID}", controllers.AdminUpdateProduct(d.Products, logg))
			r.Delete("/{productID}", controllers.AdminDeleteProduct(d.Products, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{orderID}", controllers.AdminGetOrder(d.Orders, logg))
			r.Post("/{orderID}/ship", controllers.AdminShipOrder(d.Orders, logg))
			r.Post("/{orderID}/deliver", controllers.AdminDeliverOrder(d.Orders, logg))
			r.Post("/{orderID}/restock", controllers.AdminRestockOrder(d.Orders, logg))
		})

		r.Post("/payments/{paymentID}/refund", controllers.AdminRefundPayment(d.Payments, logg))
	})

	return r
}
