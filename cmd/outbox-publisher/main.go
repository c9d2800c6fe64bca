package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/farmconnect/farmconnect-backend/internal/bootstrap"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
	"github.com/farmconnect/farmconnect-backend/pkg/metrics"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox/idempotency"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox/registry"
	redisclient "github.com/farmconnect/farmconnect-backend/pkg/redis"
	"github.com/farmconnect/farmconnect-backend/pkg/webhook"
)

func main() {
	rt, err := bootstrap.Start(context.Background(), bootstrap.Options{Service: "outbox-publisher"})
	if err != nil {
		bootstrap.Exit("outbox-publisher", err)
	}
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = rt.Context(ctx, map[string]any{"webhook": cfg.Webhook.Enabled})

	deadLetters := outbox.NewDeadLetters(rt.DB.DB())
	reportDeadLetters(ctx, logg, deadLetters)

	params := ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            rt.DB,
		Repository:    outbox.NewRepository(rt.DB.DB()),
		Registry:      registry.NewEventRegistry(),
		DLQRepository: deadLetters,
		Metrics:       metrics.NewMarketplace(prometheus.DefaultRegisterer),
	}
	if cfg.Webhook.Enabled {
		if params.Webhook, params.Guard, err = deliveryDeps(ctx, rt); err != nil {
			rt.Fatal(ctx, "failed to wire webhook delivery", err)
		}
	}

	service, err := NewService(params)
	if err != nil {
		rt.Fatal(ctx, "failed to create outbox publisher", err)
	}

	logg.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal(ctx, "outbox publisher stopped unexpectedly", err)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

// deliveryDeps builds the webhook client and its redis-backed delivery guard.
// Redis is only dialled when webhooks are on; rt.Close releases it.
func deliveryDeps(ctx context.Context, rt *bootstrap.Runtime) (*webhook.Client, *idempotency.Manager, error) {
	hook, err := webhook.NewClient(rt.Config.Webhook)
	if err != nil {
		return nil, nil, err
	}
	rt.Redis, err = redisclient.New(ctx, rt.Config.Redis, rt.Logger)
	if err != nil {
		return nil, nil, err
	}
	guard, err := idempotency.NewManager(rt.Redis, rt.Config.Outbox.DeliveredTTL)
	if err != nil {
		return nil, nil, err
	}
	return hook, guard, nil
}

func reportDeadLetters(ctx context.Context, logg *logger.Logger, deadLetters *outbox.DeadLetters) {
	backlog, err := deadLetters.CountByReason(ctx)
	if err != nil {
		logg.Warn(ctx, "could not count dead letters")
		return
	}
	if len(backlog) == 0 {
		return
	}
	fields := make(map[string]any, len(backlog))
	for reason, n := range backlog {
		fields["dead_letters_"+string(reason)] = n
	}
	logg.Warn(logg.WithFields(ctx, fields), "dead letters awaiting review")
}
