package cache

import (
	"context"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"hygienefix/internal/infrastructure/persistence/sqlite/model"
)

func setupSQLiteCache(t *testing.T) *SQLiteCache {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(&model.CacheEntry{}); err != nil {
		t.Fatalf("auto migrate cache_entries: %v", err)
	}

	return NewSQLiteCache(db)
}

func TestSQLiteCacheSetGetDelete(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "rating_counts", `{"1":42}`, time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := cache.Get(ctx, "rating_counts")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != `{"1":42}` {
		t.Fatalf("Get() = %q, found=%v", value, found)
	}

	if err := cache.Set(ctx, "rating_counts", `{"1":43}`, time.Hour); err != nil {
		t.Fatalf("Set(update) error = %v", err)
	}
	value, found, err = cache.Get(ctx, "rating_counts")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != `{"1":43}` {
		t.Fatalf("Get() after update = %q, found=%v", value, found)
	}

	if err := cache.Delete(ctx, "rating_counts"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, found, err = cache.Get(ctx, "rating_counts")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if found {
		t.Fatal("Get() expected found=false after delete")
	}
}

func TestSQLiteCacheExpiredEntryIsMiss(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	base := time.Now().UTC()
	cache.now = func() time.Time { return base }

	if err := cache.Set(ctx, "rating_counts", "v", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	cache.now = func() time.Time { return base.Add(2 * time.Minute) }

	_, found, err := cache.Get(ctx, "rating_counts")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Fatal("Get() expected expired entry to be a miss")
	}

	// The expired row is lazily deleted on read.
	var count int64
	if err := cache.db.Model(&model.CacheEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("cache rows = %d, want 0 after lazy delete", count)
	}
}

func TestSQLiteCacheRejectsBadInput(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "", "v", time.Minute); err == nil {
		t.Fatal("Set() expected error for empty key")
	}
	if err := cache.Set(ctx, "k", "v", 0); err == nil {
		t.Fatal("Set() expected error for non-positive ttl")
	}
	if _, _, err := cache.Get(ctx, "  "); err == nil {
		t.Fatal("Get() expected error for blank key")
	}
}
