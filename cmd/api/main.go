package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/farmconnect/farmconnect-backend/api/routes"
	"github.com/farmconnect/farmconnect-backend/internal/bootstrap"
	"github.com/farmconnect/farmconnect-backend/internal/auth"
	"github.com/farmconnect/farmconnect-backend/internal/cart"
	"github.com/farmconnect/farmconnect-backend/internal/catalog"
	"github.com/farmconnect/farmconnect-backend/internal/checkout"
	"github.com/farmconnect/farmconnect-backend/internal/ledger"
	ledgerevents "github.com/farmconnect/farmconnect-backend/internal/ledger/events"
	"github.com/farmconnect/farmconnect-backend/internal/messaging"
	"github.com/farmconnect/farmconnect-backend/internal/orders"
	"github.com/farmconnect/farmconnect-backend/internal/reviews"
	"github.com/farmconnect/farmconnect-backend/internal/users"
	"github.com/farmconnect/farmconnect-backend/pkg/auth/session"
	"github.com/farmconnect/farmconnect-backend/pkg/config"
	"github.com/farmconnect/farmconnect-backend/pkg/db"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
	"github.com/farmconnect/farmconnect-backend/pkg/metrics"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox"
	"github.com/farmconnect/farmconnect-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	rt, err := bootstrap.Start(context.Background(), bootstrap.Options{Service: "api", Redis: true})
	if err != nil {
		bootstrap.Exit("api", err)
	}
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := rt.Context(context.Background(), map[string]any{"addr": addr})

	sessionManager, err := session.NewManager(rt.Redis, cfg.JWT)
	if err != nil {
		rt.Fatal(ctx, "failed to create session manager", err)
	}
	services, err := buildServices(cfg, logg, rt.DB, rt.Redis, sessionManager)
	if err != nil {
		rt.Fatal(ctx, "failed to wire services", err)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, rt.DB, rt.Redis, sessionManager, prometheus.DefaultGatherer, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logg.Info(ctx, "api server listening")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.Fatal(ctx, "api server stopped unexpectedly", err)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessionManager *session.Manager,
) (routes.Services, error) {
	conn := dbClient.DB()
	marketplace := metrics.NewMarketplace(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	journal, err := ledgerevents.NewRecorder(ledgerevents.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}

	usersRepo := users.NewRepository(conn)
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return routes.Services{}, err
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		Users:          usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return routes.Services{}, err
	}
	usersService, err := users.NewService(usersRepo)
	if err != nil {
		return routes.Services{}, err
	}

	catalogRepo := catalog.NewRepository(conn)
	catalogService, err := catalog.NewService(catalogRepo)
	if err != nil {
		return routes.Services{}, err
	}

	cartStore, err := cart.NewRedisStore(redisClient, cfg.Cart.TTL)
	if err != nil {
		return routes.Services{}, err
	}
	cartService, err := cart.NewService(cartStore, catalogRepo)
	if err != nil {
		return routes.Services{}, err
	}

	ordersService, err := orders.NewService(orders.NewRepository(conn), dbClient, outboxService, journal, marketplace)
	if err != nil {
		return routes.Services{}, err
	}

	checkoutService, err := checkout.NewService(
		dbClient,
		checkout.NewRepository(conn),
		nil,
		cartService,
		outboxService,
		journal,
		marketplace,
		logg,
	)
	if err != nil {
		return routes.Services{}, err
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(conn), dbClient, outboxService, journal, ordersService)
	if err != nil {
		return routes.Services{}, err
	}

	reviewsService, err := reviews.NewService(reviews.NewRepository(conn), dbClient, outboxService)
	if err != nil {
		return routes.Services{}, err
	}

	messagingService, err := messaging.NewService(messaging.NewRepository(conn), dbClient, outboxService)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:      authService,
		Register:  registerService,
		Users:     usersService,
		Catalog:   catalogService,
		Cart:      cartService,
		Checkout:  checkoutService,
		Orders:    ordersService,
		Ledger:    ledgerService,
		Reviews:   reviewsService,
		Messaging: messagingService,
	}, nil
}
