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

const defaultImpersonatePrefix = "cpiam:impersonate"

// ImpersonationStore keeps the per-session impersonation overlay in Redis.
// The key is the session id, so a session can carry at most one overlay and
// the overlay dies with the session TTL even if teardown is never called.
type ImpersonationStore struct {
	client *red.Client
	prefix string
}

// NewImpersonationStore constructs the impersonation overlay store.
func NewImpersonationStore(client *red.Client, keyPrefix string) *ImpersonationStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultImpersonatePrefix
	}

	return &ImpersonationStore{client: client, prefix: prefix}
}

// Get fetches the active overlay for the session.
func (s *ImpersonationStore) Get(ctx context.Context, sessionID string) (*domain.ImpersonationContext, error) {
	key := s.key(sessionID)
	if key == "" {
		return nil, fmt.Errorf("session id is required")
	}

	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get impersonation: %w", err)
	}

	var overlay domain.ImpersonationContext
	if err := json.Unmarshal(payload, &overlay); err != nil {
		return nil, fmt.Errorf("decode impersonation overlay: %w", err)
	}

	return &overlay, nil
}

// Put stores the overlay with the supplied TTL, replacing any existing one.
func (s *ImpersonationStore) Put(ctx context.Context, overlay domain.ImpersonationContext, ttl time.Duration) error {
	key := s.key(overlay.SessionID)
	if key == "" {
		return fmt.Errorf("session id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	payload, err := json.Marshal(overlay)
	if err != nil {
		return fmt.Errorf("encode impersonation overlay: %w", err)
	}

	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set impersonation: %w", err)
	}

	return nil
}

// Delete removes the overlay for the session.
func (s *ImpersonationStore) Delete(ctx context.Context, sessionID string) error {
	key := s.key(sessionID)
	if key == "" {
		return fmt.Errorf("session id is required")
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete impersonation: %w", err)
	}

	return nil
}

func (s *ImpersonationStore) key(sessionID string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.prefix, sessionID)
}

var _ port.ImpersonationStore = (*ImpersonationStore)(nil)
