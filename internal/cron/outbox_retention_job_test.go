package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmconnect/farmconnect-backend/pkg/logger"
)

// pruneSpy deletes from a fixed backlog of published rows.
type pruneSpy struct {
	backlog int64
	cutoffs []time.Time
	limits  []int
	err     error
}

func (p *pruneSpy) DeletePublishedBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	p.cutoffs = append(p.cutoffs, cutoff)
	p.limits = append(p.limits, limit)
	if p.err != nil {
		return 0, p.err
	}
	n := min(p.backlog, int64(limit))
	p.backlog -= n
	return n, nil
}

func TestOutboxRetentionDrainsInBatches(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	spy := &pruneSpy{backlog: 25}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop(), Repository: spy, BatchSize: 10})
	require.NoError(t, err)
	job.clock = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	assert.Len(t, spy.cutoffs, 3)
	assert.Equal(t, []int{10, 10, 10}, spy.limits)
	assert.True(t, spy.cutoffs[0].Equal(now.Add(-defaultOutboxRetention)))
	assert.Zero(t, spy.backlog)
}

func TestOutboxRetentionHonorsWindow(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	spy := &pruneSpy{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop(), Repository: spy, Retention: 48 * time.Hour})
	require.NoError(t, err)
	job.clock = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, spy.cutoffs, 1)
	assert.True(t, spy.cutoffs[0].Equal(now.Add(-48*time.Hour)))
	assert.Equal(t, defaultPruneBatch, spy.limits[0])
}

func TestOutboxRetentionPropagatesError(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop(), Repository: &pruneSpy{err: errors.New("db gone")}})
	require.NoError(t, err)
	assert.ErrorContains(t, job.Run(context.Background()), "db gone")
}

func TestOutboxRetentionStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	spy := &pruneSpy{backlog: 1000}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop(), Repository: spy, BatchSize: 10})
	require.NoError(t, err)

	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
	assert.Len(t, spy.cutoffs, 1)
}
