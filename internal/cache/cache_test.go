package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relief-network/coordinator/internal/models"
	"github.com/relief-network/coordinator/internal/observability"
	"github.com/relief-network/coordinator/internal/storage/memory"
)

// faultyStore lets a test fail reads or writes of an otherwise working store.
type faultyStore struct {
	*memory.Store
	readErr  error
	writeErr error
}

func (s *faultyStore) GetCacheEntry(ctx context.Context, key string, now time.Time) (*models.CacheEntry, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.Store.GetCacheEntry(ctx, key, now)
}

func (s *faultyStore) UpsertCacheEntry(ctx context.Context, entry models.CacheEntry) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	return s.Store.UpsertCacheEntry(ctx, entry)
}

func newTestCache(store Store, clock clockwork.Clock) (*Cache, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return New(store, clock, metrics, observability.NewDiscardLogger()), metrics
}

func counting(calls *int32, value any) Producer {
	return func(context.Context) (any, error) {
		atomic.AddInt32(calls, 1)
		return value, nil
	}
}

func TestFetch_HitWithinWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c, metrics := newTestCache(memory.New(clock), clock)
	ctx := context.Background()

	var calls int32
	first, err := c.Fetch(ctx, "social-media:1", 5*time.Minute, counting(&calls, []string{"a", "b"}))
	require.NoError(t, err)

	clock.Advance(4 * time.Minute)
	second, err := c.Fetch(ctx, "social-media:1", 5*time.Minute, counting(&calls, []string{"other"}))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("social-media", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("social-media", "miss")))
}

func TestFetch_RecomputesAfterExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c, _ := newTestCache(memory.New(clock), clock)
	ctx := context.Background()

	var calls int32
	_, err := c.Fetch(ctx, "geocode:x", time.Hour, counting(&calls, 1))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	got, err := c.Fetch(ctx, "geocode:x", time.Hour, counting(&calls, 2))
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls)
	assert.JSONEq(t, "2", string(got))
}

func TestFetch_ProducerErrorIsNotCached(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c, _ := newTestCache(memory.New(clock), clock)
	ctx := context.Background()

	boom := errors.New("upstream down")
	_, err := c.Fetch(ctx, "geocode:x", time.Hour, func(context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	var calls int32
	_, err = c.Fetch(ctx, "geocode:x", time.Hour, counting(&calls, "ok"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls)
}

func TestFetch_StoreReadErrorFails(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &faultyStore{Store: memory.New(clock), readErr: errors.New("connection reset")}
	c, _ := newTestCache(store, clock)

	var calls int32
	_, err := c.Fetch(context.Background(), "geocode:x", time.Hour, counting(&calls, "ok"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Zero(t, calls)
}

func TestFetch_WriteFailureIsSwallowed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &faultyStore{Store: memory.New(clock), writeErr: errors.New("disk full")}
	c, metrics := newTestCache(store, clock)
	ctx := context.Background()

	var calls int32
	got, err := c.Fetch(ctx, "geocode:x", time.Hour, counting(&calls, map[string]int{"n": 1}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(got))

	_, err = c.Fetch(ctx, "geocode:x", time.Hour, counting(&calls, map[string]int{"n": 1}))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls, "nothing was cached")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CacheWriteFailures.WithLabelValues("geocode")))
}

func TestFetch_UnencodableValue(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c, _ := newTestCache(memory.New(clock), clock)

	_, err := c.Fetch(context.Background(), "k", time.Hour, func(context.Context) (any, error) {
		return make(chan int), nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode cache value")
}

func TestFetch_RawMessagePassesThrough(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c, _ := newTestCache(memory.New(clock), clock)

	got, err := c.Fetch(context.Background(), "k", time.Hour, func(context.Context) (any, error) {
		return json.RawMessage(`[1,2,3]`), nil
	})
	require.NoError(t, err)
	assert.Equal(t, `[1,2,3]`, string(got))
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "geocode", Namespace("geocode:paris_france"))
	assert.Equal(t, "social-media", Namespace("social-media:42"))
	assert.Equal(t, "default", Namespace("plain"))
}
