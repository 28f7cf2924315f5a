package usecase

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
	"github.com/sitebeam/construction-platform-iam/internal/infra/security"
	"github.com/sitebeam/construction-platform-iam/internal/repository"
)

type staticKeyProvider struct {
	key *rsa.PrivateKey
}

func (p *staticKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.key, nil
}

func (p *staticKeyProvider) GetVerificationKey(string) (*rsa.PublicKey, error) {
	return &p.key.PublicKey, nil
}

func newTestJWTManager(t *testing.T) *security.JWTManager {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	mgr := security.NewJWTManager(&staticKeyProvider{key: key})
	if err := mgr.RegisterPublicKey("test-key", &key.PublicKey); err != nil {
		t.Fatalf("register public key: %v", err)
	}
	return mgr
}

type authProfileRepo struct {
	record domain.ProfileRecord
}

func (r *authProfileRepo) GetByPrincipal(_ context.Context, principalID string) (*domain.ProfileRecord, error) {
	if principalID != r.record.PrincipalID {
		return nil, repository.ErrNotFound
	}
	copied := r.record
	return &copied, nil
}

func (r *authProfileRepo) GetByEmail(_ context.Context, email string) (*domain.ProfileRecord, error) {
	if email != r.record.Email {
		return nil, repository.ErrNotFound
	}
	copied := r.record
	return &copied, nil
}

func (r *authProfileRepo) Create(context.Context, domain.ProfileRecord) error {
	return errors.New("unexpected call: Create")
}

func (r *authProfileRepo) UpdateContact(context.Context, string, string, string) error {
	return errors.New("unexpected call: UpdateContact")
}

func (r *authProfileRepo) SetRole(context.Context, string, domain.Role, domain.Seniority) (int64, error) {
	return 0, errors.New("unexpected call: SetRole")
}

func (r *authProfileRepo) SetActive(context.Context, string, bool) error {
	return errors.New("unexpected call: SetActive")
}

func (r *authProfileRepo) SetOverrides(context.Context, string, map[string]domain.OverrideEffect) error {
	return errors.New("unexpected call: SetOverrides")
}

type authSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	revoked  []string
	touched  []string
}

func newAuthSessionRepo() *authSessionRepo {
	return &authSessionRepo{sessions: make(map[string]domain.Session)}
}

func (r *authSessionRepo) Create(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *authSessionRepo) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := session
	return &copied, nil
}

func (r *authSessionRepo) ListByPrincipal(context.Context, string) ([]domain.Session, error) {
	return nil, errors.New("unexpected call: ListByPrincipal")
}

func (r *authSessionRepo) Touch(_ context.Context, sessionID string, _ *string, _ *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, sessionID)
	return nil
}

func (r *authSessionRepo) Revoke(_ context.Context, sessionID string, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	session.RevokedAt = &now
	r.sessions[sessionID] = session
	r.revoked = append(r.revoked, sessionID)
	return nil
}

func (r *authSessionRepo) RevokeAllForPrincipal(context.Context, string, string) (int, error) {
	return 0, errors.New("unexpected call: RevokeAllForPrincipal")
}

type authTokenRepo struct {
	mu       sync.Mutex
	byHash   map[string]domain.RefreshToken
	revokeds []string
}

func newAuthTokenRepo() *authTokenRepo {
	return &authTokenRepo{byHash: make(map[string]domain.RefreshToken)}
}

func (r *authTokenRepo) Create(_ context.Context, token domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHash[token.TokenHash] = token
	return nil
}

func (r *authTokenRepo) GetByHash(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.byHash[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := token
	return &copied, nil
}

func (r *authTokenRepo) Revoke(_ context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, token := range r.byHash {
		if token.ID == tokenID {
			now := time.Now().UTC()
			token.RevokedAt = &now
			r.byHash[hash] = token
			r.revokeds = append(r.revokeds, tokenID)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *authTokenRepo) RevokeBySession(_ context.Context, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for hash, token := range r.byHash {
		if token.SessionID == sessionID && token.RevokedAt == nil {
			now := time.Now().UTC()
			token.RevokedAt = &now
			r.byHash[hash] = token
			count++
		}
	}
	return count, nil
}

func testProfileRecord(t *testing.T, password string) domain.ProfileRecord {
	t.Helper()
	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	now := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)
	return domain.ProfileRecord{
		Profile: domain.Profile{
			PrincipalID: "principal-1",
			Email:       "pm@example.com",
			FirstName:   "Dana",
			LastName:    "Reyes",
			Role:        domain.RoleProjectManager,
			Seniority:   domain.SenioritySenior,
			IsActive:    true,
			Version:     3,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		PasswordHash: hash,
		PasswordAlgo: "argon2id",
	}
}

func newTestAuthService(t *testing.T, profiles *authProfileRepo, sessions *authSessionRepo, tokens *authTokenRepo) *AuthService {
	t.Helper()
	return NewAuthService(profiles, sessions, tokens, nil, newTestJWTManager(t), AuthConfig{
		KID:    "test-key",
		Issuer: "construction-platform-iam",
	}, zaptest.NewLogger(t))
}

func TestSignInIssuesCredential(t *testing.T) {
	const password = "tower-crane-goes-up-7"
	profiles := &authProfileRepo{record: testProfileRecord(t, password)}
	sessions := newAuthSessionRepo()
	tokens := newAuthTokenRepo()

	service := newTestAuthService(t, profiles, sessions, tokens)
	base := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	service.WithClock(func() time.Time { return base })
	service.jwtManager.WithClock(func() time.Time { return base })

	credential, err := service.SignIn(context.Background(), "PM@example.com", password)
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if credential.PrincipalID != "principal-1" {
		t.Fatalf("unexpected principal id %q", credential.PrincipalID)
	}
	if credential.RefreshToken == "" || credential.AccessToken == "" {
		t.Fatal("expected non-empty tokens")
	}
	if got := credential.ExpiresAt; !got.Equal(base.Add(15 * time.Minute)) {
		t.Fatalf("unexpected access expiry %v", got)
	}

	if len(sessions.sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions.sessions))
	}
	stored, err := tokens.GetByHash(context.Background(), security.HashToken(credential.RefreshToken))
	if err != nil {
		t.Fatalf("refresh token not persisted: %v", err)
	}
	if stored.SessionID != credential.SessionID {
		t.Fatalf("token bound to session %q, credential says %q", stored.SessionID, credential.SessionID)
	}

	claims, err := service.jwtManager.ParseAccessToken(credential.AccessToken, "construction-platform-iam")
	if err != nil {
		t.Fatalf("access token failed to parse: %v", err)
	}
	if claims.PrincipalID != "principal-1" || claims.SessionID != credential.SessionID {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.Role != string(domain.RoleProjectManager) || claims.ProfileVersion != 3 {
		t.Fatalf("unexpected role/version claims %+v", claims)
	}
}

func TestSignInWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	profiles := &authProfileRepo{record: testProfileRecord(t, "tower-crane-goes-up-7")}
	service := newTestAuthService(t, profiles, newAuthSessionRepo(), newAuthTokenRepo())

	if _, err := service.SignIn(context.Background(), "pm@example.com", "not-the-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}

	if _, err := service.SignIn(context.Background(), "nobody@example.com", "whatever-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignInDisabledAccount(t *testing.T) {
	const password = "tower-crane-goes-up-7"
	record := testProfileRecord(t, password)
	record.IsActive = false
	service := newTestAuthService(t, &authProfileRepo{record: record}, newAuthSessionRepo(), newAuthTokenRepo())

	if _, err := service.SignIn(context.Background(), "pm@example.com", password); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	const password = "tower-crane-goes-up-7"
	profiles := &authProfileRepo{record: testProfileRecord(t, password)}
	sessions := newAuthSessionRepo()
	tokens := newAuthTokenRepo()

	service := newTestAuthService(t, profiles, sessions, tokens)
	base := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	service.WithClock(func() time.Time { return base })

	credential, err := service.SignIn(context.Background(), "pm@example.com", password)
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	service.WithClock(func() time.Time { return base.Add(12 * time.Minute) })

	refreshed, err := service.Refresh(context.Background(), credential.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if refreshed.RefreshToken == credential.RefreshToken {
		t.Fatal("expected refresh token rotation")
	}
	if refreshed.SessionID != credential.SessionID {
		t.Fatalf("refresh moved sessions: %q vs %q", refreshed.SessionID, credential.SessionID)
	}

	// The presented token is single-use.
	if _, err := service.Refresh(context.Background(), credential.RefreshToken); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("reusing rotated token: expected ErrSessionExpired, got %v", err)
	}

	if _, err := service.Refresh(context.Background(), refreshed.RefreshToken); err != nil {
		t.Fatalf("rotated token should stay valid: %v", err)
	}
}

func TestRefreshExpiredTokenAndUnknownToken(t *testing.T) {
	const password = "tower-crane-goes-up-7"
	profiles := &authProfileRepo{record: testProfileRecord(t, password)}
	sessions := newAuthSessionRepo()
	tokens := newAuthTokenRepo()

	service := newTestAuthService(t, profiles, sessions, tokens)
	base := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	service.WithClock(func() time.Time { return base })

	credential, err := service.SignIn(context.Background(), "pm@example.com", password)
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	service.WithClock(func() time.Time { return base.Add(200 * time.Hour) })
	if _, err := service.Refresh(context.Background(), credential.RefreshToken); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expired token: expected ErrSessionExpired, got %v", err)
	}

	if _, err := service.Refresh(context.Background(), "never-issued"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("unknown token: expected ErrSessionExpired, got %v", err)
	}
}

func TestRevokeTerminatesSessionAndIsIdempotent(t *testing.T) {
	const password = "tower-crane-goes-up-7"
	profiles := &authProfileRepo{record: testProfileRecord(t, password)}
	sessions := newAuthSessionRepo()
	tokens := newAuthTokenRepo()

	service := newTestAuthService(t, profiles, sessions, tokens)

	credential, err := service.SignIn(context.Background(), "pm@example.com", password)
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	if err := service.Revoke(context.Background(), credential.RefreshToken); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if len(sessions.revoked) != 1 {
		t.Fatalf("expected one session revoked, got %d", len(sessions.revoked))
	}

	if _, err := service.Refresh(context.Background(), credential.RefreshToken); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("refresh after revoke: expected ErrSessionExpired, got %v", err)
	}

	// Revoking an unknown token is a no-op.
	if err := service.Revoke(context.Background(), "never-issued"); err != nil {
		t.Fatalf("unknown token revoke should succeed, got %v", err)
	}
}
