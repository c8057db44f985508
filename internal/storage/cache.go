package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/relief-network/coordinator/internal/models"
)

// GetCacheEntry returns the entry for key if it has not expired at now.
// Missing and expired entries both yield models.ErrNotFound.
func (db *DB) GetCacheEntry(ctx context.Context, key string, now time.Time) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	var value []byte
	err := db.Pool.QueryRow(ctx,
		"SELECT key, value, expires_at FROM cache WHERE key = $1 AND expires_at > $2",
		key, now).Scan(&entry.Key, &value, &entry.ExpiresAt)
	if err != nil {
		return nil, mapError(err, "cache entry", key)
	}
	entry.Value = value
	return &entry, nil
}

// UpsertCacheEntry writes or replaces the entry for its key
func (db *DB) UpsertCacheEntry(ctx context.Context, entry models.CacheEntry) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO cache (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		entry.Key, string(entry.Value), entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry %s: %w", entry.Key, err)
	}
	return nil
}

// PurgeExpiredCache deletes entries that expired at or before now
func (db *DB) PurgeExpiredCache(ctx context.Context, now time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, "DELETE FROM cache WHERE expires_at <= $1", now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return tag.RowsAffected(), nil
}
