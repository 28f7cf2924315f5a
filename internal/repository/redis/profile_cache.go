package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
	"github.com/sitebeam/construction-platform-iam/internal/core/port"
	"github.com/sitebeam/construction-platform-iam/internal/repository"
)

const defaultProfilePrefix = "cpiam:profile"

// ProfileCache caches resolved profiles so permission checks stay off the
// database hot path. Entries are dropped eagerly on role change events.
type ProfileCache struct {
	client *red.Client
	prefix string
}

// NewProfileCache constructs the profile cache helper.
func NewProfileCache(client *red.Client, keyPrefix string) *ProfileCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultProfilePrefix
	}

	return &ProfileCache{client: client, prefix: prefix}
}

// Get fetches the cached profile for the principal.
func (c *ProfileCache) Get(ctx context.Context, principalID string) (*domain.Profile, error) {
	key := c.key(principalID)
	if key == "" {
		return nil, fmt.Errorf("principal id is required")
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get profile: %w", err)
	}

	var profile domain.Profile
	if err := json.Unmarshal(payload, &profile); err != nil {
		return nil, fmt.Errorf("decode cached profile: %w", err)
	}

	return &profile, nil
}

// Set stores the profile with the supplied TTL.
func (c *ProfileCache) Set(ctx context.Context, profile domain.Profile, ttl time.Duration) error {
	key := c.key(profile.PrincipalID)
	if key == "" {
		return fmt.Errorf("principal id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	payload, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set profile: %w", err)
	}

	return nil
}

// Delete removes the cached profile entry.
func (c *ProfileCache) Delete(ctx context.Context, principalID string) error {
	key := c.key(principalID)
	if key == "" {
		return fmt.Errorf("principal id is required")
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete profile: %w", err)
	}

	return nil
}

func (c *ProfileCache) key(principalID string) string {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", c.prefix, principalID)
}

var _ port.ProfileCache = (*ProfileCache)(nil)
