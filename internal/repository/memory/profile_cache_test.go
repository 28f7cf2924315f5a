package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
	"github.com/sitebeam/construction-platform-iam/internal/repository"
)

func TestProfileCacheRoundTrip(t *testing.T) {
	base := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	current := base
	cache := NewProfileCache().WithClock(func() time.Time { return current })
	ctx := context.Background()

	profile := domain.Profile{PrincipalID: "principal-1", Role: domain.RoleClient, Version: 2}
	if err := cache.Set(ctx, profile, 30*time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := cache.Get(ctx, "principal-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("expected version 2, got %d", got.Version)
	}

	// A mutation of the returned profile must not leak back into the cache.
	got.Version = 99
	again, err := cache.Get(ctx, "principal-1")
	if err != nil {
		t.Fatalf("get after mutation: %v", err)
	}
	if again.Version != 2 {
		t.Fatalf("cache entry mutated through returned pointer, version %d", again.Version)
	}
}

func TestProfileCacheExpiry(t *testing.T) {
	base := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	current := base
	cache := NewProfileCache().WithClock(func() time.Time { return current })
	ctx := context.Background()

	if err := cache.Set(ctx, domain.Profile{PrincipalID: "principal-1"}, 10*time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	current = base.Add(11 * time.Minute)
	if _, err := cache.Get(ctx, "principal-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestProfileCacheDelete(t *testing.T) {
	cache := NewProfileCache()
	ctx := context.Background()

	if err := cache.Set(ctx, domain.Profile{PrincipalID: "principal-1"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := cache.Delete(ctx, "principal-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := cache.Get(ctx, "principal-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
