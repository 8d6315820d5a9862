package cache

import (
	"context"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"gissues/internal/infrastructure/persistence/sqlite/model"
)

func setupSQLiteCache(t *testing.T) *SQLiteCache {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "cache.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(&model.KV{}); err != nil {
		t.Fatalf("auto migrate sync_kv: %v", err)
	}

	return NewSQLiteCache(db)
}

func TestSQLiteCacheSetGetDelete(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "sync:last_pass:octo/hello", "2024-06-01T00:00:00Z", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := cache.Get(ctx, "sync:last_pass:octo/hello")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "2024-06-01T00:00:00Z" {
		t.Fatalf("Get() = %q, found=%v", value, found)
	}

	if err := cache.Set(ctx, "sync:last_pass:octo/hello", "2024-06-01T01:00:00Z", 0); err != nil {
		t.Fatalf("Set(update) error = %v", err)
	}

	value, found, err = cache.Get(ctx, "sync:last_pass:octo/hello")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "2024-06-01T01:00:00Z" {
		t.Fatalf("Get() after update = %q, found=%v", value, found)
	}

	if err := cache.Delete(ctx, "sync:last_pass:octo/hello"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, found, err = cache.Get(ctx, "sync:last_pass:octo/hello")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if found {
		t.Fatalf("Get() expected found=false after delete")
	}
}

func TestSQLiteCacheListByPrefix(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	for key, value := range map[string]string{
		"sync:last_error:octo/hello": "github api is currently unavailable",
		"sync:last_error:octo/world": "",
		"sync:last_pass:octo/hello":  "2024-06-01T00:00:00Z",
		"sync_other":                 "x",
	} {
		if err := cache.Set(ctx, key, value, 0); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}

	got, err := cache.List(ctx, "sync:last_error:")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got["sync:last_error:octo/hello"] == "" {
		t.Fatalf("List() = %v", got)
	}
}

func TestSQLiteCacheRejectsEmptyKey(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "", "v", 0); err == nil {
		t.Fatalf("Set() expected error for empty key")
	}
	if _, _, err := cache.Get(ctx, ""); err == nil {
		t.Fatalf("Get() expected error for empty key")
	}
	if err := cache.Delete(ctx, ""); err == nil {
		t.Fatalf("Delete() expected error for empty key")
	}
}
