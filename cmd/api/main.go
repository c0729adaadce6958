package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/velostore/storefront-backend/api/routes"
	"github.com/velostore/storefront-backend/internal/address"
	"github.com/velostore/storefront-backend/internal/cart"
	checkoutsvc "github.com/velostore/storefront-backend/internal/checkout"
	"github.com/velostore/storefront-backend/internal/inventory"
	"github.com/velostore/storefront-backend/internal/notifications"
	"github.com/velostore/storefront-backend/internal/orders"
	"github.com/velostore/storefront-backend/internal/payments"
	"github.com/velostore/storefront-backend/internal/products"
	"github.com/velostore/storefront-backend/internal/users"
	razorpaywebhook "github.com/velostore/storefront-backend/internal/webhooks/razorpay"
	"github.com/velostore/storefront-backend/pkg/config"
	"github.com/velostore/storefront-backend/pkg/db"
	"github.com/velostore/storefront-backend/pkg/logger"
	"github.com/velostore/storefront-backend/pkg/migrate"
	"github.com/velostore/storefront-backend/pkg/razorpay"
	"github.com/velostore/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	razorpayClient, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create razorpay client", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	ordersRepo := orders.NewRepository(conn)
	productsRepo := products.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	paymentsRepo := payments.NewRepository(conn)
	usersRepo := users.NewRepository(conn)

	inventoryService, err := inventory.NewService(inventory.ServiceParams{
		Repo:   inventory.NewRepository(conn),
		Logger: logg,
		Hold:   cfg.Checkout.ReservationHold,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	productsService, err := products.NewService(productsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create products service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, productsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	addressService, err := address.NewService(conn)
	if err != nil {
		logg.Error(context.Background(), "failed to create address service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:      ordersRepo,
		Tx:        dbClient,
		Inventory: inventoryService,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:    paymentsRepo,
		Orders:  ordersRepo,
		Gateway: razorpayClient,
		Tx:      dbClient,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		OrdersRepo: ordersRepo,
		Catalog:    productsRepo,
		Cart:       cartService,
		Addresses:  addressService,
		Reserver:   inventoryService,
		Intents:    paymentsService,
		Tx:         dbClient,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookService, err := razorpaywebhook.NewService(razorpaywebhook.ServiceParams{
		PaymentsRepo: paymentsRepo,
		OrdersRepo:   ordersRepo,
		CartRepo:     cartRepo,
		UsersRepo:    usersRepo,
		Deducter:     inventoryService,
		Notifier:     notificationsService,
		Mailer:       notifications.NewMailer(cfg.SMTP, logg),
		Tx:           dbClient,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Razorpay:      razorpayClient,
			Checkout:      checkoutService,
			Payments:      paymentsService,
			Orders:        ordersService,
			Products:      productsService,
			Cart:          cartService,
			Addresses:     addressService,
			Notifications: notificationsService,
			Webhooks:      webhookService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
