package port

import (
	"context"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
)

// SessionRepository deals with session storage.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	ListByPrincipal(ctx context.Context, principalID string) ([]domain.Session, error)
	Touch(ctx context.Context, sessionID string, ip *string, userAgent *string) error
	Revoke(ctx context.Context, sessionID string, reason string) error
	RevokeAllForPrincipal(ctx context.Context, principalID string, reason string) (int, error)
}
