package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/farmconnect/farmconnect-backend/internal/bootstrap"
	"github.com/farmconnect/farmconnect-backend/internal/cron"
	ledgerevents "github.com/farmconnect/farmconnect-backend/internal/ledger/events"
	"github.com/farmconnect/farmconnect-backend/internal/orders"
	"github.com/farmconnect/farmconnect-backend/pkg/config"
	"github.com/farmconnect/farmconnect-backend/pkg/db"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
	"github.com/farmconnect/farmconnect-backend/pkg/metrics"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox"
)

func main() {
	rt, err := bootstrap.Start(context.Background(), bootstrap.Options{Service: "cron-worker", Redis: true})
	if err != nil {
		bootstrap.Exit("cron-worker", err)
	}
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = rt.Context(ctx, map[string]any{"interval": cfg.Cron.Interval.String()})

	lock, err := cron.NewRedisLock(rt.Redis, cfg.Cron.LockKey+":"+envOrLocal(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		rt.Fatal(ctx, "failed to create cron lock", err)
	}
	registry, err := buildRegistry(cfg, logg, rt.DB)
	if err != nil {
		rt.Fatal(ctx, "failed to register cron jobs", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		rt.Fatal(ctx, "failed to create cron service", err)
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal(ctx, "cron worker stopped unexpectedly", err)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	conn := dbClient.DB()

	journal, err := ledgerevents.NewRecorder(ledgerevents.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	outboxRepo := outbox.NewRepository(conn)
	ordersService, err := orders.NewService(
		orders.NewRepository(conn),
		dbClient,
		outbox.NewService(outboxRepo, logg),
		journal,
		metrics.NewMarketplace(prometheus.DefaultRegisterer),
	)
	if err != nil {
		return nil, err
	}

	expiry, err := cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{
		Logger: logg,
		Orders: ordersService,
		TTL:    cfg.Orders.PendingTTL,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(expiry, retention)
}
