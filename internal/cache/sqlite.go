package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type entry struct {
	Key       string `gorm:"column:k;primaryKey;size:128"`
	Value     string `gorm:"column:v;type:text;not null"`
	CreatedAt int64  `gorm:"column:created_at;index;not null;autoCreateTime:false"` // unix millis
}

func (entry) TableName() string { return "cache" }

// Option customises a SQLite cache.
type Option func(*SQLite)

// WithClock overrides the time source used for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(c *SQLite) {
		if now != nil {
			c.now = now
		}
	}
}

// SQLite is a file-backed Store. Every call opens its own connection and
// closes it before returning; concurrent writers rely on SQLite locking.
type SQLite struct {
	path string
	now  func() time.Time
}

// NewSQLite returns a cache stored at path. The parent directory is created on first use.
func NewSQLite(path string, opts ...Option) *SQLite {
	c := &SQLite{path: path, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SQLite) open(ctx context.Context) (*gorm.DB, func(), error) {
	if dir := filepath.Dir(c.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(c.path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open cache db: %w", err)
	}

	closer := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	if err := db.WithContext(ctx).AutoMigrate(&entry{}); err != nil {
		closer()
		return nil, nil, fmt.Errorf("migrate cache table: %w", err)
	}
	return db.WithContext(ctx), closer, nil
}

// Get returns the value stored under key when it is younger than ttl.
// Expired rows are removed as a side effect.
func (c *SQLite) Get(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	db, closeDB, err := c.open(ctx)
	if err != nil {
		return "", false, err
	}
	defer closeDB()

	var rows []entry
	if err := db.Where("k = ?", key).Limit(1).Find(&rows).Error; err != nil {
		return "", false, fmt.Errorf("read cache entry: %w", err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}

	e := rows[0]
	if expired(time.UnixMilli(e.CreatedAt), c.now(), ttl) {
		if err := db.Where("k = ?", key).Delete(&entry{}).Error; err != nil {
			return "", false, fmt.Errorf("delete expired cache entry: %w", err)
		}
		return "", false, nil
	}
	return e.Value, true, nil
}

// Set inserts or replaces key. The last writer wins.
func (c *SQLite) Set(ctx context.Context, key, value string) error {
	db, closeDB, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	row := entry{Key: key, Value: value, CreatedAt: c.now().UnixMilli()}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v", "created_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Prune deletes entries older than maxAge and reports how many were removed.
func (c *SQLite) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	db, closeDB, err := c.open(ctx)
	if err != nil {
		return 0, err
	}
	defer closeDB()

	cutoff := c.now().Add(-maxAge).UnixMilli()
	res := db.Where("created_at < ?", cutoff).Delete(&entry{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune cache: %w", res.Error)
	}
	return res.RowsAffected, nil
}

var _ Store = (*SQLite)(nil)
