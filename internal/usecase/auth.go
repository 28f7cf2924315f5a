package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
	"github.com/sitebeam/construction-platform-iam/internal/core/port"
	"github.com/sitebeam/construction-platform-iam/internal/infra/logger"
	"github.com/sitebeam/construction-platform-iam/internal/infra/security"
	"github.com/sitebeam/construction-platform-iam/internal/repository"
)

const (
	refreshTokenBytes = 32
	passwordAlgoArgon = "argon2id"
)

// AuthService is the credential backend: it verifies passwords, mints access
// tokens, and rotates refresh tokens. It implements port.IdentityProvider so
// the session manager never depends on it directly.
type AuthService struct {
	profiles        port.ProfileRepository
	sessions        port.SessionRepository
	tokens          port.RefreshTokenRepository
	events          port.EventPublisher
	jwtManager      *security.JWTManager
	kid             string
	issuer          string
	accessTTL       time.Duration
	refreshTTL      time.Duration
	sessionLifetime time.Duration
	logger          *zap.Logger
	now             func() time.Time
}

// AuthConfig carries token issuance parameters for the auth service.
type AuthConfig struct {
	KID             string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	SessionLifetime time.Duration
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	profiles port.ProfileRepository,
	sessions port.SessionRepository,
	tokens port.RefreshTokenRepository,
	events port.EventPublisher,
	jwtManager *security.JWTManager,
	cfg AuthConfig,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}

	service := &AuthService{
		profiles:        profiles,
		sessions:        sessions,
		tokens:          tokens,
		events:          events,
		jwtManager:      jwtManager,
		kid:             cfg.KID,
		issuer:          cfg.Issuer,
		accessTTL:       cfg.AccessTokenTTL,
		refreshTTL:      cfg.RefreshTokenTTL,
		sessionLifetime: cfg.SessionLifetime,
		logger:          log,
	}
	if service.accessTTL <= 0 {
		service.accessTTL = 15 * time.Minute
	}
	if service.refreshTTL <= 0 {
		service.refreshTTL = 168 * time.Hour
	}
	if service.sessionLifetime <= 0 {
		service.sessionLifetime = 720 * time.Hour
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// SignIn verifies the credentials and opens a new session. Unknown emails and
// wrong passwords produce the same error.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (domain.Credential, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.Credential{}, ErrInvalidCredentials
	}

	record, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn comparable CPU so the timing does not reveal whether the
			// email exists.
			_, _ = security.VerifyPassword(password, dummyHash)
			return domain.Credential{}, ErrInvalidCredentials
		}
		return domain.Credential{}, fmt.Errorf("load profile by email: %w", err)
	}

	ok, err := security.VerifyPassword(password, record.PasswordHash)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.logger.Info("sign-in rejected", zap.String("email", logger.MaskEmail(email)))
		return domain.Credential{}, ErrInvalidCredentials
	}

	if !record.IsActive {
		return domain.Credential{}, ErrAccountDisabled
	}

	now := s.now()
	session := domain.Session{
		ID:          uuid.NewString(),
		PrincipalID: record.PrincipalID,
		CreatedAt:   now,
		LastSeen:    now,
		ExpiresAt:   now.Add(s.sessionLifetime),
	}

	credential, err := s.issueTokens(ctx, &record.Profile, &session, now)
	if err != nil {
		return domain.Credential{}, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.Credential{}, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("session opened",
		zap.String("principal_id", record.PrincipalID),
		zap.String("session_id", session.ID),
	)

	return credential, nil
}

// Refresh rotates the refresh token and mints a fresh access token. Any
// failure that means the session is gone maps to ErrSessionExpired.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.Credential, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.Credential{}, ErrSessionExpired
	}

	now := s.now()

	stored, err := s.tokens.GetByHash(ctx, security.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Credential{}, ErrSessionExpired
		}
		return domain.Credential{}, fmt.Errorf("load refresh token: %w", err)
	}
	if stored.RevokedAt != nil || !stored.ExpiresAt.After(now) {
		return domain.Credential{}, ErrSessionExpired
	}

	session, err := s.sessions.Get(ctx, stored.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Credential{}, ErrSessionExpired
		}
		return domain.Credential{}, fmt.Errorf("load session: %w", err)
	}
	if !session.IsActive(now) {
		return domain.Credential{}, ErrSessionExpired
	}

	record, err := s.profiles.GetByPrincipal(ctx, session.PrincipalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Credential{}, ErrSessionExpired
		}
		return domain.Credential{}, fmt.Errorf("load profile: %w", err)
	}
	if !record.IsActive {
		return domain.Credential{}, ErrAccountDisabled
	}

	// Rotate: the presented token is single-use.
	if err := s.tokens.Revoke(ctx, stored.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.Credential{}, fmt.Errorf("revoke rotated token: %w", err)
	}

	credential, err := s.issueTokens(ctx, &record.Profile, session, now)
	if err != nil {
		return domain.Credential{}, err
	}

	if err := s.sessions.Touch(ctx, session.ID, nil, nil); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("touch session after refresh failed", zap.String("session_id", session.ID), zap.Error(err))
	}

	return credential, nil
}

// Revoke terminates the session identified by the refresh token. Unknown
// tokens are treated as already revoked.
func (s *AuthService) Revoke(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}

	stored, err := s.tokens.GetByHash(ctx, security.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load refresh token: %w", err)
	}

	if _, err := s.tokens.RevokeBySession(ctx, stored.SessionID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	if err := s.sessions.Revoke(ctx, stored.SessionID, "signed_out"); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("revoke session: %w", err)
	}

	if s.events != nil {
		session, getErr := s.sessions.Get(ctx, stored.SessionID)
		principalID := ""
		if getErr == nil {
			principalID = session.PrincipalID
		}
		event := domain.SessionRevokedEvent{
			EventID:     uuid.NewString(),
			SessionID:   stored.SessionID,
			PrincipalID: principalID,
			RevokedAt:   s.now(),
			RevokedBy:   principalID,
			Reason:      "signed_out",
		}
		if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
			s.logger.Warn("publish session revoked failed", zap.Error(err))
		}
	}

	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, profile *domain.Profile, session *domain.Session, now time.Time) (domain.Credential, error) {
	rawRefresh, err := security.GenerateSecureToken(refreshTokenBytes)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("generate refresh token: %w", err)
	}

	token := domain.RefreshToken{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		TokenHash: security.HashToken(rawRefresh),
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return domain.Credential{}, fmt.Errorf("store refresh token: %w", err)
	}
	session.RefreshTokenID = &token.ID

	claims, err := security.NewAccessTokenClaims(security.AccessTokenOptions{
		PrincipalID:    profile.PrincipalID,
		SessionID:      session.ID,
		Role:           string(profile.Role),
		CompanyID:      profile.CompanyID,
		ProfileVersion: profile.Version,
		Issuer:         s.issuer,
		TTL:            s.accessTTL,
		IssuedAt:       now,
	})
	if err != nil {
		return domain.Credential{}, fmt.Errorf("build access token claims: %w", err)
	}

	accessToken, err := s.jwtManager.SignAccessToken(s.kid, claims)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("sign access token: %w", err)
	}

	return domain.Credential{
		AccessToken:  accessToken,
		RefreshToken: rawRefresh,
		PrincipalID:  profile.PrincipalID,
		SessionID:    session.ID,
		IssuedAt:     now,
		ExpiresAt:    now.Add(s.accessTTL),
	}, nil
}

// dummyHash keeps sign-in timing flat for unknown emails.
var dummyHash = func() string {
	h, err := security.HashPassword(uuid.NewString())
	if err != nil {
		return ""
	}
	return h
}()

var _ port.IdentityProvider = (*AuthService)(nil)
