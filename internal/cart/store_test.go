package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmconnect/farmconnect-backend/pkg/config"
	redisclient "github.com/farmconnect/farmconnect-backend/pkg/redis"
)

type fakeKV struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.values[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeKV) CartKey(buyerID string) string {
	return "fc:cart:" + buyerID
}

func TestRedisStoreRoundTripAndSlidingTTL(t *testing.T) {
	kv := &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
	store, err := NewRedisStore(kv, 72*time.Hour)
	require.NoError(t, err)

	buyer := uuid.New()
	key := "fc:cart:" + buyer.String()

	lines, err := store.Load(context.Background(), buyer)
	require.NoError(t, err)
	assert.Empty(t, lines)

	line := Line{ProductID: uuid.New(), Quantity: 3, AddedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, store.Save(context.Background(), buyer, []Line{line}))
	assert.Equal(t, 72*time.Hour, kv.ttls[key])

	lines, err = store.Load(context.Background(), buyer)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, line.ProductID, lines[0].ProductID)
	assert.Equal(t, 3, lines[0].Quantity)

	require.NoError(t, store.Save(context.Background(), buyer, nil))
	assert.NotContains(t, kv.values, key)
}

func TestRedisStoreRejectsCorruptDocument(t *testing.T) {
	kv := &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
	store, _ := NewRedisStore(kv, time.Hour)
	buyer := uuid.New()
	kv.values["fc:cart:"+buyer.String()] = "{not json"

	_, err := store.Load(context.Background(), buyer)
	assert.Error(t, err)
}

func TestRedisStoreExpiresIdleCarts(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)
	client, err := redisclient.New(ctx, config.RedisConfig{Address: server.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, time.Hour)
	require.NoError(t, err)
	buyer := uuid.New()
	lines := []Line{{ProductID: uuid.New(), Quantity: 1}}

	require.NoError(t, store.Save(ctx, buyer, lines))
	server.FastForward(50 * time.Minute)
	require.NoError(t, store.Save(ctx, buyer, lines))
	server.FastForward(50 * time.Minute)

	got, err := store.Load(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, got, 1, "a save slides the expiry forward")

	server.FastForward(time.Hour)
	got, err = store.Load(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, got)
}
