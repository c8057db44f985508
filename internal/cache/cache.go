// Package cache implements the store-backed TTL cache that fronts expensive
// lookups. Entries live in the durable store, so every server instance shares
// them, and an entry is served only while the current time is before its expiry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/relief-network/coordinator/internal/models"
	"github.com/relief-network/coordinator/internal/observability"
)

// Store is the persistence the cache needs. GetCacheEntry must return an
// error matching models.ErrNotFound for both missing and expired keys.
type Store interface {
	GetCacheEntry(ctx context.Context, key string, now time.Time) (*models.CacheEntry, error)
	UpsertCacheEntry(ctx context.Context, entry models.CacheEntry) error
}

// Producer computes a value on a cache miss. The value must marshal to JSON.
type Producer func(ctx context.Context) (any, error)

// Cache wraps producers with a store-backed expiry window.
type Cache struct {
	store   Store
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a cache over store.
func New(store Store, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{
		store:   store,
		clock:   clock,
		metrics: metrics,
		logger:  logger.With("component", "cache"),
	}
}

// Fetch returns the cached JSON for key, or runs produce, stores its result
// for ttl and returns it. Producer errors are returned as-is and nothing is
// cached. A failed cache write is logged and does not fail the call.
func (c *Cache) Fetch(ctx context.Context, key string, ttl time.Duration, produce Producer) (json.RawMessage, error) {
	ns := Namespace(key)

	entry, err := c.store.GetCacheEntry(ctx, key, c.clock.Now())
	switch {
	case err == nil:
		c.metrics.CacheLookups.WithLabelValues(ns, "hit").Inc()
		c.logger.DebugContext(ctx, "serving from cache", "key", key)
		return entry.Value, nil
	case !errors.Is(err, models.ErrNotFound):
		c.logger.ErrorContext(ctx, "cache read failed", "key", key, "error", err)
		return nil, fmt.Errorf("read cache %s: %w", key, err)
	}

	c.metrics.CacheLookups.WithLabelValues(ns, "miss").Inc()
	c.logger.DebugContext(ctx, "cache miss", "key", key)

	value, err := produce(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode cache value %s: %w", key, err)
	}

	err = c.store.UpsertCacheEntry(ctx, models.CacheEntry{
		Key:       key,
		Value:     raw,
		ExpiresAt: c.clock.Now().Add(ttl),
	})
	if err != nil {
		c.metrics.CacheWriteFailures.WithLabelValues(ns).Inc()
		c.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}

	return raw, nil
}

// Namespace returns the part of key before the first colon.
func Namespace(key string) string {
	ns, _, found := strings.Cut(key, ":")
	if !found {
		return "default"
	}
	return ns
}
