package port

import (
	"context"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
)

// IdentityProvider is the credential backend the session manager consumes:
// it exchanges credentials for bearer tokens and refreshes or revokes them.
// In this deployment it is served in-process by the auth service; the session
// manager only sees this contract.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (domain.Credential, error)
	Refresh(ctx context.Context, refreshToken string) (domain.Credential, error)
	Revoke(ctx context.Context, refreshToken string) error
}
