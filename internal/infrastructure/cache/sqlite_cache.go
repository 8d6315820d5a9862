package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gissues/internal/errs"
	"gissues/internal/infrastructure/persistence/sqlite/model"
	"gissues/internal/ports"
)

// SQLiteCache keeps sync bookkeeping in the sync_kv table. Entries never expire; the ttl
// argument is accepted for interface compatibility.
type SQLiteCache struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.Cache = (*SQLiteCache)(nil)

func NewSQLiteCache(db *gorm.DB) *SQLiteCache {
	return &SQLiteCache{db: db, now: time.Now}
}

func (c *SQLiteCache) conn(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	if tx, ok := ports.TxFromContext(ctx).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx), nil
	}
	return c.db.WithContext(ctx), nil
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (string, bool, error) {
	db, err := c.conn(ctx)
	if err != nil {
		return "", false, err
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return "", false, errors.New("key is required")
	}

	var row model.KV
	if err := db.Where("key = ?", trimmedKey).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "query cache by key")
	}

	return row.Value, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key string, value string, _ time.Duration) error {
	db, err := c.conn(ctx)
	if err != nil {
		return err
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return errors.New("key is required")
	}

	row := model.KV{
		Key:       trimmedKey,
		Value:     value,
		UpdatedAt: c.now().UTC().Format(time.RFC3339Nano),
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert cache key")
	}

	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	db, err := c.conn(ctx)
	if err != nil {
		return err
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return errors.New("key is required")
	}

	if err := db.Where("key = ?", trimmedKey).Delete(&model.KV{}).Error; err != nil {
		return errs.Wrap(err, "delete cache key")
	}
	return nil
}

// List returns every entry whose key starts with prefix.
func (c *SQLiteCache) List(ctx context.Context, prefix string) (map[string]string, error) {
	db, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.KV
	if err := db.Where("substr(key, 1, ?) = ?", len(prefix), prefix).Order("key asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "list cache keys")
	}

	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}
