package port

import (
	"context"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
)

// ProfileRepository persists profiles and their credentials.
type ProfileRepository interface {
	GetByPrincipal(ctx context.Context, principalID string) (*domain.ProfileRecord, error)
	GetByEmail(ctx context.Context, email string) (*domain.ProfileRecord, error)
	Create(ctx context.Context, record domain.ProfileRecord) error
	UpdateContact(ctx context.Context, principalID, firstName, lastName string) error
	// SetRole changes role and seniority, bumps the profile version, and
	// returns the new version.
	SetRole(ctx context.Context, principalID string, role domain.Role, seniority domain.Seniority) (int64, error)
	SetActive(ctx context.Context, principalID string, active bool) error
	SetOverrides(ctx context.Context, principalID string, overrides map[string]domain.OverrideEffect) error
}
