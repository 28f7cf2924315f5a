// Package memory holds in-process fallbacks for the Redis-backed stores, used
// by embedded deployments and the client-side session manager where a cache
// round trip over the network is not worth it.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
	"github.com/sitebeam/construction-platform-iam/internal/core/port"
	"github.com/sitebeam/construction-platform-iam/internal/repository"
)

type profileEntry struct {
	profile   domain.Profile
	expiresAt time.Time
}

// ProfileCache is a TTL map guarded by a mutex. Expired entries are dropped
// lazily on read.
type ProfileCache struct {
	mu      sync.Mutex
	entries map[string]profileEntry
	now     func() time.Time
}

// NewProfileCache constructs an empty in-process profile cache.
func NewProfileCache() *ProfileCache {
	return &ProfileCache{
		entries: make(map[string]profileEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (c *ProfileCache) WithClock(clock func() time.Time) *ProfileCache {
	if clock != nil {
		c.now = clock
	}
	return c
}

// Get fetches the cached profile for the principal.
func (c *ProfileCache) Get(_ context.Context, principalID string) (*domain.Profile, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return nil, fmt.Errorf("principal id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[principalID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !entry.expiresAt.After(c.now()) {
		delete(c.entries, principalID)
		return nil, repository.ErrNotFound
	}

	profile := entry.profile
	return &profile, nil
}

// Set stores the profile with the supplied TTL.
func (c *ProfileCache) Set(_ context.Context, profile domain.Profile, ttl time.Duration) error {
	principalID := strings.TrimSpace(profile.PrincipalID)
	if principalID == "" {
		return fmt.Errorf("principal id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[principalID] = profileEntry{profile: profile, expiresAt: c.now().Add(ttl)}
	return nil
}

// Delete removes the cached profile entry.
func (c *ProfileCache) Delete(_ context.Context, principalID string) error {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return fmt.Errorf("principal id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, principalID)
	return nil
}

var _ port.ProfileCache = (*ProfileCache)(nil)
