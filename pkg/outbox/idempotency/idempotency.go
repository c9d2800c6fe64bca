package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store is the Redis surface the guard needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	OutboxDeliveredKey(eventID string) string
}

// Manager remembers which outbox events already reached the webhook, using
// SETNX on `fc:outbox:delivered:<event_id>` with a TTL.
type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager builds a delivery guard that remembers events for ttl.
func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Claim marks eventID as delivered. It returns false when a previous delivery
// already claimed it, in which case the caller must skip the send.
func (m *Manager) Claim(ctx context.Context, eventID uuid.UUID) (bool, error) {
	if eventID == uuid.Nil {
		return false, errors.New("event id is required")
	}
	claimedAt := time.Now().UTC().Format(time.RFC3339)
	return m.store.SetNX(ctx, m.store.OutboxDeliveredKey(eventID.String()), claimedAt, m.ttl)
}

// Release forgets a claim after a failed delivery so the next attempt can send.
func (m *Manager) Release(ctx context.Context, eventID uuid.UUID) error {
	if eventID == uuid.Nil {
		return errors.New("event id is required")
	}
	return m.store.Del(ctx, m.store.OutboxDeliveredKey(eventID.String()))
}
