package port

import (
	"context"
	"time"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
)

// ProfileCache is the short-TTL cache in front of the profile repository.
type ProfileCache interface {
	Get(ctx context.Context, principalID string) (*domain.Profile, error)
	Set(ctx context.Context, profile domain.Profile, ttl time.Duration) error
	Delete(ctx context.Context, principalID string) error
}
