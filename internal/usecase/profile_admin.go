package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitebeam/construction-platform-iam/internal/authz"
	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
	"github.com/sitebeam/construction-platform-iam/internal/core/port"
	"github.com/sitebeam/construction-platform-iam/internal/infra/security"
	"github.com/sitebeam/construction-platform-iam/internal/repository"
)

// ProfileAdminService performs administrative profile mutations: role
// changes, deactivation, and permission overrides. Every mutation invalidates
// the cache and publishes an event so other instances converge immediately.
type ProfileAdminService struct {
	profiles  port.ProfileRepository
	sessions  port.SessionRepository
	resolver  *ProfileResolver
	evaluator *authz.Evaluator
	events    port.EventPublisher
	validator *security.PasswordValidator
	logger    *zap.Logger
	now       func() time.Time
}

// NewProfileAdminService constructs a ProfileAdminService.
func NewProfileAdminService(
	profiles port.ProfileRepository,
	sessions port.SessionRepository,
	resolver *ProfileResolver,
	evaluator *authz.Evaluator,
	events port.EventPublisher,
	log *zap.Logger,
) *ProfileAdminService {
	if log == nil {
		log = zap.NewNop()
	}
	if evaluator == nil {
		evaluator = authz.NewEvaluator(nil)
	}
	service := &ProfileAdminService{
		profiles:  profiles,
		sessions:  sessions,
		resolver:  resolver,
		evaluator: evaluator,
		events:    events,
		logger:    log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *ProfileAdminService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithPasswordValidator injects a password policy for profile creation.
func (s *ProfileAdminService) WithPasswordValidator(validator *security.PasswordValidator) *ProfileAdminService {
	s.validator = validator
	return s
}

// CreateProfileInput captures a new profile request.
type CreateProfileInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domain.Role
	Seniority domain.Seniority
	CompanyID *string
}

// CreateProfile registers a profile after checking the actor may manage users.
func (s *ProfileAdminService) CreateProfile(ctx context.Context, actorID string, input CreateProfileInput) (*domain.Profile, error) {
	if err := s.requireManage(ctx, actorID); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	if _, err := s.profiles.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	validator := s.validator
	if validator == nil {
		validator = security.NewPasswordValidatorWithContext(email, input.FirstName, input.LastName)
	}
	if err := validator.Validate(input.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	seniority := input.Seniority
	if seniority == "" {
		seniority = domain.SeniorityRegular
	}

	now := s.now()
	record := domain.ProfileRecord{
		Profile: domain.Profile{
			PrincipalID: uuid.NewString(),
			Email:       email,
			FirstName:   strings.TrimSpace(input.FirstName),
			LastName:    strings.TrimSpace(input.LastName),
			Role:        input.Role,
			Seniority:   seniority,
			CompanyID:   input.CompanyID,
			IsActive:    true,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		PasswordHash: hash,
		PasswordAlgo: passwordAlgoArgon,
	}

	if err := s.profiles.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	profile := record.Profile
	return &profile, nil
}

// UpdateContact lets a principal edit their own contact fields.
func (s *ProfileAdminService) UpdateContact(ctx context.Context, principalID, firstName, lastName string) error {
	if err := s.profiles.UpdateContact(ctx, principalID, strings.TrimSpace(firstName), strings.TrimSpace(lastName)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("update contact: %w", err)
	}

	return s.invalidate(ctx, principalID)
}

// SetRole changes a profile's role and seniority, invalidates the cache, and
// announces the change on the bus.
func (s *ProfileAdminService) SetRole(ctx context.Context, actorID, principalID string, role domain.Role, seniority domain.Seniority) error {
	if err := s.requireManage(ctx, actorID); err != nil {
		return err
	}

	target, err := s.profiles.GetByPrincipal(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("load profile: %w", err)
	}

	if seniority == "" {
		seniority = domain.SeniorityRegular
	}

	version, err := s.profiles.SetRole(ctx, principalID, role, seniority)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("set role: %w", err)
	}

	if err := s.invalidate(ctx, principalID); err != nil {
		return err
	}

	if s.events != nil {
		event := domain.ProfileRoleChangedEvent{
			EventID:     uuid.NewString(),
			PrincipalID: principalID,
			OldRole:     target.Role,
			NewRole:     role,
			NewVersion:  version,
			ChangedBy:   actorID,
			ChangedAt:   s.now(),
		}
		if err := s.events.PublishProfileRoleChanged(ctx, event); err != nil {
			s.logger.Warn("publish role change failed", zap.String("principal_id", principalID), zap.Error(err))
		}
	}

	return nil
}

// Deactivate disables the profile and revokes every open session for it.
func (s *ProfileAdminService) Deactivate(ctx context.Context, actorID, principalID, reason string) error {
	if err := s.requireManage(ctx, actorID); err != nil {
		return err
	}

	if err := s.profiles.SetActive(ctx, principalID, false); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("deactivate profile: %w", err)
	}

	revoked, err := s.sessions.RevokeAllForPrincipal(ctx, principalID, "profile_deactivated")
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	if err := s.invalidate(ctx, principalID); err != nil {
		return err
	}

	s.logger.Info("profile deactivated",
		zap.String("principal_id", principalID),
		zap.String("actor_id", actorID),
		zap.Int("sessions_revoked", revoked),
	)

	if s.events != nil {
		event := domain.ProfileDeactivatedEvent{
			EventID:       uuid.NewString(),
			PrincipalID:   principalID,
			DeactivatedBy: actorID,
			DeactivatedAt: s.now(),
			Reason:        reason,
		}
		if err := s.events.PublishProfileDeactivated(ctx, event); err != nil {
			s.logger.Warn("publish deactivation failed", zap.String("principal_id", principalID), zap.Error(err))
		}
	}

	return nil
}

// Reactivate re-enables a previously disabled profile.
func (s *ProfileAdminService) Reactivate(ctx context.Context, actorID, principalID string) error {
	if err := s.requireManage(ctx, actorID); err != nil {
		return err
	}

	if err := s.profiles.SetActive(ctx, principalID, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("reactivate profile: %w", err)
	}

	return s.invalidate(ctx, principalID)
}

// SetOverrides replaces the explicit permission overrides for a profile.
// Unknown action names are rejected so typos fail loudly instead of silently
// never matching.
func (s *ProfileAdminService) SetOverrides(ctx context.Context, actorID, principalID string, overrides map[string]domain.OverrideEffect) error {
	if err := s.requireManage(ctx, actorID); err != nil {
		return err
	}

	for name, effect := range overrides {
		if _, ok := authz.ParseAction(name); !ok {
			return fmt.Errorf("unknown action %q in overrides", name)
		}
		if effect != domain.OverrideAllow && effect != domain.OverrideDeny {
			return fmt.Errorf("invalid override effect %q for %q", effect, name)
		}
	}

	if err := s.profiles.SetOverrides(ctx, principalID, overrides); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("set overrides: %w", err)
	}

	return s.invalidate(ctx, principalID)
}

func (s *ProfileAdminService) requireManage(ctx context.Context, actorID string) error {
	actor, err := s.resolver.GetProfile(ctx, actorID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return ErrForbidden
		}
		return err
	}

	if !s.evaluator.Can(*actor, authz.ActionUsersManage, nil) {
		return ErrForbidden
	}

	return nil
}

func (s *ProfileAdminService) invalidate(ctx context.Context, principalID string) error {
	if s.resolver == nil {
		return nil
	}
	if err := s.resolver.Invalidate(ctx, principalID); err != nil {
		s.logger.Warn("profile invalidation failed", zap.String("principal_id", principalID), zap.Error(err))
	}
	return nil
}
