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
	"github.com/sitebeam/construction-platform-iam/internal/repository"
)

const defaultImpersonationTTL = time.Hour

// ImpersonationService runs the two-state impersonation machine for a
// session: Normal or Impersonating, never stacked. While an overlay is
// active, permission checks see the target profile; the audit trail always
// records the original principal.
type ImpersonationService struct {
	store     port.ImpersonationStore
	resolver  *ProfileResolver
	evaluator *authz.Evaluator
	events    port.EventPublisher
	maxTTL    time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewImpersonationService constructs an ImpersonationService.
func NewImpersonationService(
	store port.ImpersonationStore,
	resolver *ProfileResolver,
	evaluator *authz.Evaluator,
	events port.EventPublisher,
	maxTTL time.Duration,
	log *zap.Logger,
) *ImpersonationService {
	if log == nil {
		log = zap.NewNop()
	}
	if evaluator == nil {
		evaluator = authz.NewEvaluator(nil)
	}
	if maxTTL <= 0 {
		maxTTL = defaultImpersonationTTL
	}
	service := &ImpersonationService{
		store:     store,
		resolver:  resolver,
		evaluator: evaluator,
		events:    events,
		maxTTL:    maxTTL,
		logger:    log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *ImpersonationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Start places an impersonation overlay on the session. The effective
// profile must hold users.impersonate and the target must exist. While an
// overlay is active the effective profile is the impersonated one, which
// does not carry that grant, so switching targets requires a Stop first.
func (s *ImpersonationService) Start(ctx context.Context, sessionID, actorID, targetID string) (*domain.ImpersonationContext, error) {
	sessionID = strings.TrimSpace(sessionID)
	targetID = strings.TrimSpace(targetID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if targetID == "" {
		return nil, fmt.Errorf("target principal id is required")
	}

	// The permission check evaluates the session's effective principal,
	// the same profile every other authorization check sees.
	effectiveID := actorID
	original := actorID
	if existing, err := s.store.Get(ctx, sessionID); err == nil && existing != nil {
		effectiveID = existing.TargetPrincipalID
		original = existing.OriginalPrincipalID
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load impersonation overlay: %w", err)
	}

	actor, err := s.resolver.GetProfile(ctx, effectiveID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}

	if !s.evaluator.Can(*actor, authz.ActionUsersImpersonate, nil) {
		s.logger.Warn("impersonation denied",
			zap.String("actor_id", effectiveID),
			zap.String("target_id", targetID),
		)
		return nil, ErrForbidden
	}

	if actorID == targetID {
		return nil, fmt.Errorf("cannot impersonate self")
	}

	target, err := s.resolver.GetProfile(ctx, targetID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, ErrTargetNotFound
		}
		return nil, err
	}

	overlay := domain.ImpersonationContext{
		SessionID:           sessionID,
		OriginalPrincipalID: original,
		TargetPrincipalID:   target.PrincipalID,
		StartedAt:           s.now(),
	}

	if err := s.store.Put(ctx, overlay, s.maxTTL); err != nil {
		return nil, fmt.Errorf("store impersonation overlay: %w", err)
	}

	s.logger.Info("impersonation started",
		zap.String("session_id", sessionID),
		zap.String("original_principal_id", original),
		zap.String("target_principal_id", target.PrincipalID),
	)

	if s.events != nil {
		event := domain.ImpersonationStartedEvent{
			EventID:             uuid.NewString(),
			SessionID:           sessionID,
			OriginalPrincipalID: original,
			TargetPrincipalID:   target.PrincipalID,
			StartedAt:           overlay.StartedAt,
		}
		if err := s.events.PublishImpersonationStarted(ctx, event); err != nil {
			s.logger.Warn("publish impersonation start failed", zap.Error(err))
		}
	}

	return &overlay, nil
}

// Stop tears down the overlay. Stopping a session in the Normal state is
// ErrNotImpersonating so callers notice broken client state.
func (s *ImpersonationService) Stop(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	overlay, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotImpersonating
		}
		return fmt.Errorf("load impersonation overlay: %w", err)
	}

	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete impersonation overlay: %w", err)
	}

	now := s.now()
	s.logger.Info("impersonation stopped",
		zap.String("session_id", sessionID),
		zap.String("original_principal_id", overlay.OriginalPrincipalID),
		zap.String("target_principal_id", overlay.TargetPrincipalID),
		zap.Duration("duration", now.Sub(overlay.StartedAt)),
	)

	if s.events != nil {
		event := domain.ImpersonationStoppedEvent{
			EventID:             uuid.NewString(),
			SessionID:           sessionID,
			OriginalPrincipalID: overlay.OriginalPrincipalID,
			TargetPrincipalID:   overlay.TargetPrincipalID,
			StoppedAt:           now,
			Duration:            now.Sub(overlay.StartedAt).String(),
		}
		if err := s.events.PublishImpersonationStopped(ctx, event); err != nil {
			s.logger.Warn("publish impersonation stop failed", zap.Error(err))
		}
	}

	return nil
}

// Active returns the overlay for the session, or nil when the session is in
// the Normal state.
func (s *ImpersonationService) Active(ctx context.Context, sessionID string) (*domain.ImpersonationContext, error) {
	overlay, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load impersonation overlay: %w", err)
	}
	return overlay, nil
}

// EffectiveProfile resolves the profile permission checks must use: the
// impersonation target when an overlay is active, otherwise the token
// principal. The second return value is the auditable principal id, which is
// always the original actor.
func (s *ImpersonationService) EffectiveProfile(ctx context.Context, sessionID, tokenPrincipalID string) (*domain.Profile, string, error) {
	overlay, err := s.Active(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}

	if overlay == nil {
		profile, err := s.resolver.GetProfile(ctx, tokenPrincipalID)
		if err != nil {
			return nil, "", err
		}
		return profile, tokenPrincipalID, nil
	}

	profile, err := s.resolver.GetProfile(ctx, overlay.TargetPrincipalID)
	if err != nil {
		return nil, "", err
	}
	return profile, overlay.OriginalPrincipalID, nil
}
