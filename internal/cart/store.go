package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/farmconnect/farmconnect-backend/pkg/redis"
)

// Line is one product in a stored cart.
type Line struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// Store persists a buyer's cart lines.
type Store interface {
	Load(ctx context.Context, buyerID uuid.UUID) ([]Line, error)
	Save(ctx context.Context, buyerID uuid.UUID, lines []Line) error
	Clear(ctx context.Context, buyerID uuid.UUID) error
}

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(buyerID string) string
}

type document struct {
	Lines []Line `json:"lines"`
}

// RedisStore keeps each cart as one JSON document under fc:cart:<buyer_id>.
// Every save resets the TTL, so an active cart never expires.
type RedisStore struct {
	kv  kvStore
	ttl time.Duration
}

func NewRedisStore(kv kvStore, ttl time.Duration) (*RedisStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisStore{kv: kv, ttl: ttl}, nil
}

func (s *RedisStore) Load(ctx context.Context, buyerID uuid.UUID) ([]Line, error) {
	raw, err := s.kv.Get(ctx, s.kv.CartKey(buyerID.String()))
	if err != nil {
		if redisclient.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}
	var doc document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return doc.Lines, nil
}

// Save writes lines, or deletes the key when the cart is empty.
func (s *RedisStore) Save(ctx context.Context, buyerID uuid.UUID, lines []Line) error {
	if len(lines) == 0 {
		return s.Clear(ctx, buyerID)
	}
	payload, err := json.Marshal(document{Lines: lines})
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return s.kv.Set(ctx, s.kv.CartKey(buyerID.String()), payload, s.ttl)
}

func (s *RedisStore) Clear(ctx context.Context, buyerID uuid.UUID) error {
	return s.kv.Del(ctx, s.kv.CartKey(buyerID.String()))
}
