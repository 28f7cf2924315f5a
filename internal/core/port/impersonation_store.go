package port

import (
	"context"
	"time"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
)

// ImpersonationStore persists the at-most-one active impersonation overlay
// per session.
type ImpersonationStore interface {
	Get(ctx context.Context, sessionID string) (*domain.ImpersonationContext, error)
	Put(ctx context.Context, overlay domain.ImpersonationContext, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}
