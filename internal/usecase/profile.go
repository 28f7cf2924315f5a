package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
	"github.com/sitebeam/construction-platform-iam/internal/core/port"
	"github.com/sitebeam/construction-platform-iam/internal/repository"
)

const defaultProfileTTL = 30 * time.Minute

// ProfileResolver serves profiles from a TTL cache in front of the
// repository. Permission checks run through it on every request, so cache
// misses are the exception, and explicit invalidation keeps role changes from
// waiting out the TTL.
type ProfileResolver struct {
	profiles port.ProfileRepository
	cache    port.ProfileCache
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewProfileResolver constructs a ProfileResolver.
func NewProfileResolver(profiles port.ProfileRepository, cache port.ProfileCache, ttl time.Duration, log *zap.Logger) *ProfileResolver {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultProfileTTL
	}
	resolver := &ProfileResolver{
		profiles: profiles,
		cache:    cache,
		ttl:      ttl,
		logger:   log,
	}
	resolver.now = func() time.Time { return time.Now().UTC() }
	return resolver
}

// GetProfile resolves the profile for the principal, consulting the cache
// first. A repository miss is ErrProfileNotFound; a repository failure is
// ErrBackendUnavailable so callers can distinguish "gone" from "unknown".
func (r *ProfileResolver) GetProfile(ctx context.Context, principalID string) (*domain.Profile, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return nil, fmt.Errorf("principal id is required")
	}

	if r.cache != nil {
		cached, err := r.cache.Get(ctx, principalID)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			r.logger.Warn("profile cache read failed", zap.String("principal_id", principalID), zap.Error(err))
		}
	}

	record, err := r.profiles.GetByPrincipal(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	profile := record.Profile
	if r.cache != nil {
		if err := r.cache.Set(ctx, profile, r.ttl); err != nil {
			r.logger.Warn("profile cache write failed", zap.String("principal_id", principalID), zap.Error(err))
		}
	}

	return &profile, nil
}

// Invalidate drops the cached profile so the next read hits the repository.
func (r *ProfileResolver) Invalidate(ctx context.Context, principalID string) error {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return fmt.Errorf("principal id is required")
	}
	if r.cache == nil {
		return nil
	}

	if err := r.cache.Delete(ctx, principalID); err != nil {
		return fmt.Errorf("invalidate profile: %w", err)
	}

	return nil
}
