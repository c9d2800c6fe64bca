package cron

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/farmconnect/farmconnect-backend/pkg/logger"
	"github.com/farmconnect/farmconnect-backend/pkg/metrics"
)

const (
	defaultInterval   = time.Hour
	defaultJobTimeout = 10 * time.Minute
)

// ServiceParams configure a Service. Metrics may be nil.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs every registered job once per tick. Only the worker holding
// the lock runs a cycle; others skip it.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

// CycleReport summarises one pass over the registry.
type CycleReport struct {
	Skipped bool
	Ran     int
	Failed  []string
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("cron: logger required")
	case p.Lock == nil:
		return nil, errors.New("cron: lock required")
	case p.Registry == nil:
		return nil, errors.New("cron: registry required")
	}
	s := &Service{
		logg:       p.Logger,
		registry:   p.Registry,
		lock:       p.Lock,
		metrics:    p.Metrics,
		interval:   p.Interval,
		jobTimeout: p.JobTimeout,
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = defaultJobTimeout
	}
	return s, nil
}

// Run executes a cycle immediately and then on every interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"interval": s.interval.String(),
		"jobs":     s.registry.Len(),
	})
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs one cycle. Job failures are reported, not returned; the error
// is reserved for lock and context problems.
func (s *Service) RunOnce(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return report, fmt.Errorf("acquire cron lock: %w", err)
	}
	if !held {
		report.Skipped = true
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return report, nil
	}
	defer func() {
		// release must survive a cancelled cycle context
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.lock.Release(releaseCtx); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}()

	for _, job := range s.registry.Jobs() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Ran++
		if outcome := s.execute(ctx, job); outcome != metrics.JobSucceeded {
			report.Failed = append(report.Failed, job.Name())
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"ran":    report.Ran,
		"failed": len(report.Failed),
	}), "cron cycle complete")
	return report, nil
}

func (s *Service) execute(ctx context.Context, job Job) (outcome string) {
	name := job.Name()
	jobCtx, cancel := context.WithTimeout(s.logg.WithField(ctx, "job", name), s.jobTimeout)
	defer cancel()
	started := time.Now()

	defer func() {
		took := time.Since(started)
		if r := recover(); r != nil {
			outcome = metrics.JobPanicked
			s.logg.Error(s.logg.WithField(jobCtx, "stack", string(debug.Stack())), "cron job panicked", fmt.Errorf("panic: %v", r))
		}
		s.metrics.ObserveRun(name, outcome, took)
		s.logg.Info(s.logg.WithFields(jobCtx, map[string]any{
			"outcome":     outcome,
			"duration_ms": took.Milliseconds(),
		}), "cron job finished")
	}()

	err := job.Run(jobCtx)
	switch {
	case err == nil:
		return metrics.JobSucceeded
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		s.logg.Error(jobCtx, "cron job timed out", err)
		return metrics.JobTimedOut
	default:
		s.logg.Error(jobCtx, "cron job failed", err)
		return metrics.JobFailed
	}
}
