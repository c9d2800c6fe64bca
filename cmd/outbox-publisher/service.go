package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmconnect/farmconnect-backend/pkg/config"
	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
	"github.com/farmconnect/farmconnect-backend/pkg/metrics"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox/registry"
	"github.com/farmconnect/farmconnect-backend/pkg/webhook"
)

const (
	defaultBatchSize   = 50
	defaultMaxAttempts = 10
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, letter models.DeadLetter) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type deliverer interface {
	Ping(context.Context) error
	Deliver(ctx context.Context, eventID string, body []byte) error
}

type deliveryGuard interface {
	Claim(ctx context.Context, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, eventID uuid.UUID) error
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            dbClient
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
	Webhook       deliverer
	Guard         deliveryGuard
	Metrics       *metrics.Marketplace
}

type Service struct {
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	registry     registryResolver
	dlq          dlqRepository
	webhook      deliverer
	guard        deliveryGuard
	metrics      *metrics.Marketplace
	deliver      bool
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	required := []struct {
		name    string
		missing bool
	}{
		{"config", params.Config == nil},
		{"logger", params.Logger == nil},
		{"database client", params.DB == nil},
		{"outbox repository", params.Repository == nil},
		{"event registry", params.Registry == nil},
		{"dead letter repository", params.DLQRepository == nil},
	}
	for _, dep := range required {
		if dep.missing {
			return nil, fmt.Errorf("%s is required", dep.name)
		}
	}
	cfg := params.Config
	if cfg.Webhook.Enabled && params.Webhook == nil {
		return nil, errors.New("webhook client is required when delivery is enabled")
	}

	svc := &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		registry:     params.Registry,
		dlq:          params.DLQRepository,
		webhook:      params.Webhook,
		guard:        params.Guard,
		metrics:      params.Metrics,
		deliver:      cfg.Webhook.Enabled,
		batchSize:    cfg.Outbox.BatchSize,
		maxAttempts:  cfg.Outbox.MaxAttempts,
		pollInterval: cfg.Outbox.PollInterval(),
	}
	if svc.batchSize <= 0 {
		svc.batchSize = defaultBatchSize
	}
	if svc.maxAttempts <= 0 {
		svc.maxAttempts = defaultMaxAttempts
	}
	return svc, nil
}

func (s *Service) checkDependencies(ctx context.Context) error {
	checks := map[string]func(context.Context) error{"database": s.db.Ping}
	if s.deliver {
		checks["webhook"] = s.webhook.Ping
	}
	for name, ping := range checks {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	return nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// the next one; an empty batch waits one poll interval. Consecutive batch
// errors back off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}
	if !s.deliver {
		s.logg.Warn(ctx, "webhook delivery disabled, events will be marked published without sending")
	}

	backoff := s.pollInterval
	for ctx.Err() == nil {
		processed, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			wait = withJitter(backoff)
		case processed:
			backoff = s.pollInterval
			continue
		default:
			backoff = s.pollInterval
			wait = withJitter(s.pollInterval)
		}
		if err := s.sleep(ctx, wait); err != nil {
			break
		}
	}
	s.logg.Info(ctx, "outbox publisher context canceled")
	return ctx.Err()
}

// processBatch locks up to batchSize rows and settles each one inside the
// same transaction. It reports whether any row was found.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var found int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		found = len(events)
		for _, event := range events {
			if err := s.processEvent(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return found > 0, err
}

// processEvent only returns errors from bookkeeping writes; delivery failures
// are recorded on the row.
func (s *Service) processEvent(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	fields := s.eventFields(event)

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.handleTerminal(ctx, tx, event, enums.DeadLetterNonRetryable, err, fields)
	}
	fields["event_id"] = resolved.Envelope.EventID
	fields["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)

	if !s.deliver {
		return s.settle(ctx, tx, event, metrics.DeliverySkipped, fields)
	}

	claimed, err := s.claim(ctx, event.ID)
	switch {
	case err != nil:
		return s.recordFailure(ctx, tx, event, fmt.Errorf("claim delivery: %w", err), fields)
	case !claimed:
		return s.settle(ctx, tx, event, metrics.DeliveryDuplicate, fields)
	}

	if err := s.webhook.Deliver(ctx, resolved.Envelope.EventID, event.Payload); err != nil {
		s.release(ctx, event.ID, fields)
		var permanent *webhook.PermanentError
		if errors.As(err, &permanent) || !pkgerrors.IsRetryable(err) {
			return s.handleTerminal(ctx, tx, event, enums.DeadLetterNonRetryable, registry.NewNonRetryableError(err), fields)
		}
		return s.recordFailure(ctx, tx, event, err, fields)
	}
	return s.settle(ctx, tx, event, metrics.DeliveryDelivered, fields)
}

// settle marks the row published and records how it got there.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, outcome string, fields map[string]any) error {
	if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
		return fmt.Errorf("mark published %s: %w", event.ID, err)
	}
	s.metrics.OutboxDelivery(event.EventType, outcome)

	logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "outcome", outcome)
	if outcome == metrics.DeliverySkipped {
		s.logg.Debug(logCtx, "outbox event settled")
	} else {
		s.logg.Info(logCtx, "outbox event settled")
	}
	return nil
}

func (s *Service) claim(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.guard == nil {
		return true, nil
	}
	return s.guard.Claim(ctx, id)
}

func (s *Service) release(ctx context.Context, id uuid.UUID, fields map[string]any) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(ctx, id); err != nil {
		s.logg.Error(s.logg.WithFields(ctx, fields), "failed to release delivery claim", err)
	}
}

func (s *Service) recordFailure(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, err error, fields map[string]any) error {
	nextAttempt := event.AttemptCount + 1
	fields["attempt_count"] = nextAttempt

	if nextAttempt >= s.maxAttempts {
		fields["terminal_reason"] = "max_attempts"
		terminalErr := fmt.Errorf("max delivery attempts reached: %w", err)
		return s.handleTerminal(ctx, tx, event, enums.DeadLetterMaxAttempts, terminalErr, fields)
	}

	logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", err.Error())
	s.logg.Warn(logCtx, "outbox delivery failed")
	if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
	}
	s.metrics.OutboxDelivery(event.EventType, metrics.DeliveryRetry)
	return nil
}

func (s *Service) handleTerminal(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.DeadLetterReason, err error, fields map[string]any) error {
	fields["error_reason"] = reason
	logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", err.Error())
	s.logg.Warn(logCtx, "outbox event will not be retried")

	letter := event.DeadLetter(reason, err, time.Now())
	if dlqErr := s.dlq.InsertTx(tx, letter); dlqErr != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, dlqErr)
	}
	if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	s.metrics.OutboxDelivery(event.EventType, metrics.DeliveryDeadLetter)
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// nextBackoff doubles current, starting from base, and caps it at ceiling.
func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, ceiling)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
