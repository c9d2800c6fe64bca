package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farmconnect/farmconnect-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultPruneBatch      = 500
)

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxPruner
	Retention  time.Duration
	BatchSize  int
}

// OutboxRetentionJob deletes delivered outbox rows once they are older than
// the retention window. It works in batches so one run never holds a long
// delete against the table.
type OutboxRetentionJob struct {
	logg      *logger.Logger
	repo      outboxPruner
	retention time.Duration
	batch     int
	clock     func() time.Time
}

func NewOutboxRetentionJob(p OutboxRetentionJobParams) (*OutboxRetentionJob, error) {
	if p.Logger == nil || p.Repository == nil {
		return nil, errors.New("outbox retention: logger and repository required")
	}
	job := &OutboxRetentionJob{
		logg:      p.Logger,
		repo:      p.Repository,
		retention: p.Retention,
		batch:     p.BatchSize,
		clock:     time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.batch <= 0 {
		job.batch = defaultPruneBatch
	}
	return job, nil
}

func (j *OutboxRetentionJob) Name() string { return "outbox-retention" }

func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.clock().UTC().Add(-j.retention)
	var total int64
	for batches := 0; ; batches++ {
		n, err := j.repo.DeletePublishedBefore(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("prune outbox after %d rows: %w", total, err)
		}
		total += n
		if n < int64(j.batch) {
			j.logg.Info(j.logg.WithFields(ctx, map[string]any{
				"cutoff":       cutoff.Format(time.RFC3339),
				"rows_deleted": total,
				"batches":      batches + 1,
			}), "outbox retention complete")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
