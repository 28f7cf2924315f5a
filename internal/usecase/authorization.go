package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/sitebeam/construction-platform-iam/internal/authz"
)

// AuthorizationService answers permission questions for authenticated
// sessions. It is the only place that combines the impersonation overlay
// with the pure evaluator, so every caller gets the same dual bookkeeping:
// decisions use the effective profile, logs record the original principal.
type AuthorizationService struct {
	impersonation *ImpersonationService
	evaluator     *authz.Evaluator
	logger        *zap.Logger
}

// NewAuthorizationService constructs an AuthorizationService.
func NewAuthorizationService(impersonation *ImpersonationService, evaluator *authz.Evaluator, log *zap.Logger) *AuthorizationService {
	if log == nil {
		log = zap.NewNop()
	}
	if evaluator == nil {
		evaluator = authz.NewEvaluator(nil)
	}
	return &AuthorizationService{
		impersonation: impersonation,
		evaluator:     evaluator,
		logger:        log,
	}
}

// Check evaluates a named action for the session's effective profile.
// Unknown action names deny rather than error out to the caller's benefit:
// a typo in a client must never widen access.
func (s *AuthorizationService) Check(ctx context.Context, sessionID, principalID, action string, resource *authz.Resource) (authz.Decision, error) {
	parsed, ok := authz.ParseAction(action)
	if !ok {
		return authz.Decision{Allow: false, Reason: "unknown action"}, nil
	}

	profile, auditID, err := s.impersonation.EffectiveProfile(ctx, sessionID, principalID)
	if err != nil {
		return authz.Decision{}, err
	}

	decision := s.evaluator.Decide(*profile, parsed, resource)

	s.logger.Debug("authorization decision",
		zap.String("principal_id", auditID),
		zap.String("effective_principal_id", profile.PrincipalID),
		zap.String("action", action),
		zap.Bool("allow", decision.Allow),
		zap.String("reason", decision.Reason),
	)

	return decision, nil
}

// ApprovalLimit exposes the purchase approval cap for the session's
// effective profile.
func (s *AuthorizationService) ApprovalLimit(ctx context.Context, sessionID, principalID string) (int64, error) {
	profile, _, err := s.impersonation.EffectiveProfile(ctx, sessionID, principalID)
	if err != nil {
		return 0, err
	}
	return s.evaluator.ApprovalLimit(*profile), nil
}
