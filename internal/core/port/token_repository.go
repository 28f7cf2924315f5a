package port

import (
	"context"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
)

// RefreshTokenRepository persists refresh tokens (hashes only, never the raw
// token).
type RefreshTokenRepository interface {
	Create(ctx context.Context, token domain.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, tokenID string) error
	RevokeBySession(ctx context.Context, sessionID string) (int, error)
}
