package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lead-recon/internal/cache"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	getEntrySQL = `SELECT v, created_at
    FROM cache_entries
    WHERE k = $1;`

	deleteEntrySQL = `DELETE FROM cache_entries WHERE k = $1;`

	upsertEntrySQL = `INSERT INTO cache_entries (k, v, created_at)
    VALUES ($1, $2, $3)
    ON CONFLICT (k) DO UPDATE
    SET v          = EXCLUDED.v,
        created_at = EXCLUDED.created_at;`

	pruneEntriesSQL = `DELETE FROM cache_entries WHERE created_at < $1;`
)

// Cache implements cache.Store on PostgreSQL. Each call acquires its own pool connection.
type Cache struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewCache wires a pgx pool into a Cache.
func NewCache(pool *pgxpool.Pool) *Cache {
	return &Cache{pool: pool, now: time.Now}
}

// Close releases the underlying pool resources.
func (c *Cache) Close() {
	if c == nil || c.pool == nil {
		return
	}
	c.pool.Close()
}

func (c *Cache) getPool() (*pgxpool.Pool, error) {
	if c == nil || c.pool == nil {
		return nil, ErrNotConfigured
	}
	return c.pool, nil
}

// Get returns the value under key unless it is older than ttl, in which case the row is deleted.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	pool, err := c.getPool()
	if err != nil {
		return "", false, err
	}

	var (
		value     string
		createdAt time.Time
	)
	if err := pool.QueryRow(ctx, getEntrySQL, key).Scan(&value, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read cache entry: %w", err)
	}

	if ttl > 0 && c.now().Sub(createdAt) > ttl {
		if _, err := pool.Exec(ctx, deleteEntrySQL, key); err != nil {
			return "", false, fmt.Errorf("delete expired cache entry: %w", err)
		}
		return "", false, nil
	}
	return value, true, nil
}

// Set inserts or replaces key.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	pool, err := c.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, upsertEntrySQL, key, value, c.now().UTC()); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Prune removes entries older than maxAge.
func (c *Cache) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	pool, err := c.getPool()
	if err != nil {
		return 0, err
	}
	tag, err := pool.Exec(ctx, pruneEntriesSQL, c.now().Add(-maxAge).UTC())
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ cache.Store = (*Cache)(nil)
