package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/farmconnect/farmconnect-backend/internal/orders"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
)

const (
	defaultPendingOrderTTL = 72 * time.Hour
	expiryBatchSize        = 100
	expiryReason           = "pending order expired"
)

// OrderExpiryJobParams configure the pending order expiry job.
type OrderExpiryJobParams struct {
	Logger *logger.Logger
	Orders orderCanceller
	TTL    time.Duration
}

type orderCanceller interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	Cancel(ctx context.Context, actor orders.Actor, orderID uuid.UUID, reason string) (*orders.OrderDTO, error)
}

// NewOrderExpiryJob cancels orders that stayed pending past the TTL, which returns their stock.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	return &orderExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		batch:  expiryBatchSize,
		now:    time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg   *logger.Logger
	orders orderCanceller
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *orderExpiryJob) Name() string { return "pending-order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	var (
		errs      error
		expired   int
		skipped   int
		attempted = map[uuid.UUID]struct{}{}
	)
	for {
		ids, err := j.orders.ListStalePending(ctx, cutoff, j.batch)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list stale pending orders: %w", err))
		}
		fresh := 0
		for _, id := range ids {
			if _, seen := attempted[id]; seen {
				continue
			}
			attempted[id] = struct{}{}
			fresh++

			_, err := j.orders.Cancel(ctx, orders.SystemActor(), id, expiryReason)
			switch {
			case err == nil:
				expired++
			case pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition):
				// moved on since it was listed
				skipped++
			default:
				errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", id, err))
			}
		}
		if fresh == 0 || len(ids) < j.batch || ctx.Err() != nil {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": expired,
		"skipped": skipped,
		"failed":  len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "pending order expiry complete")
	return errs
}
