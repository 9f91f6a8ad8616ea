package cache

import (
	"context"
	"testing"
	"time"

	"github.com/storepulse/backend/internal/domain"
)

func detailRecord(id, title string) *domain.Record {
	rec := domain.NewRecord()
	rec.Set("appId", id)
	rec.Set("title", title)
	return rec
}

func TestMemoryDetailCache_SetAndGet(t *testing.T) {
	cache := NewMemoryDetailCache()
	ctx := context.Background()

	err := cache.Set(ctx, "appstore:1234:us", detailRecord("1234", "Puzzle Quest"), time.Minute)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := cache.Get(ctx, "appstore:1234:us")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if title, _ := got.Get("title"); title != "Puzzle Quest" {
		t.Errorf("title = %v, want Puzzle Quest", title)
	}
}

func TestMemoryDetailCache_Miss(t *testing.T) {
	cache := NewMemoryDetailCache()

	_, err := cache.Get(context.Background(), "missing")
	if err != domain.ErrCacheMiss {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryDetailCache_Expiration(t *testing.T) {
	cache := NewMemoryDetailCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "k", detailRecord("1", "Shortlived"), time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := cache.Get(ctx, "k"); err != domain.ErrCacheMiss {
		t.Errorf("Get() after expiry error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryDetailCache_GetReturnsClone(t *testing.T) {
	cache := NewMemoryDetailCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "k", detailRecord("1", "Original"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	first, err := cache.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	first.Set(domain.ReviewsField, "great | awful")

	second, err := cache.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, ok := second.Get(domain.ReviewsField); ok {
		t.Error("cached record was mutated through a returned clone")
	}
}

func TestMemoryDetailCache_Delete(t *testing.T) {
	cache := NewMemoryDetailCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "k", detailRecord("1", "Gone"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := cache.Get(ctx, "k"); err != domain.ErrCacheMiss {
		t.Errorf("Get() after delete error = %v, want ErrCacheMiss", err)
	}
	if cache.Size() != 0 {
		t.Errorf("Size() = %d, want 0", cache.Size())
	}
}
