package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
)

type sessionIdentityStub struct {
	mu           sync.Mutex
	refreshCalls int32
	refreshDelay time.Duration
	refreshErr   error
	next         domain.Credential
	revoked      []string
	revokeErr    error
}

func (s *sessionIdentityStub) SignIn(context.Context, string, string) (domain.Credential, error) {
	return domain.Credential{}, errors.New("unexpected call: SignIn")
}

func (s *sessionIdentityStub) Refresh(ctx context.Context, _ string) (domain.Credential, error) {
	atomic.AddInt32(&s.refreshCalls, 1)
	if s.refreshDelay > 0 {
		select {
		case <-time.After(s.refreshDelay):
		case <-ctx.Done():
			return domain.Credential{}, ctx.Err()
		}
	}
	if s.refreshErr != nil {
		return domain.Credential{}, s.refreshErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, nil
}

func (s *sessionIdentityStub) Revoke(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = append(s.revoked, refreshToken)
	return s.revokeErr
}

func (s *sessionIdentityStub) calls() int32 {
	return atomic.LoadInt32(&s.refreshCalls)
}

func seedSession(t *testing.T, m *SessionManager, expiresIn time.Duration, base time.Time) {
	t.Helper()
	m.mu.Lock()
	m.current = &domain.Credential{
		AccessToken:  "access-original",
		RefreshToken: "refresh-original",
		PrincipalID:  "principal-1",
		SessionID:    "session-1",
		IssuedAt:     base,
		ExpiresAt:    base.Add(expiresIn),
	}
	m.mu.Unlock()
}

func TestGetAccessTokenReturnsCachedOutsideMargin(t *testing.T) {
	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	identity := &sessionIdentityStub{}

	manager := NewSessionManager(identity, zaptest.NewLogger(t))
	manager.WithClock(func() time.Time { return base })
	seedSession(t, manager, 10*time.Minute, base)

	token, err := manager.GetAccessToken(context.Background())
	if err != nil {
		t.Fatalf("GetAccessToken returned error: %v", err)
	}
	if token != "access-original" {
		t.Fatalf("expected cached token, got %q", token)
	}
	if identity.calls() != 0 {
		t.Fatalf("expected no refresh calls, got %d", identity.calls())
	}
}

func TestGetAccessTokenRefreshesInsideMargin(t *testing.T) {
	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	identity := &sessionIdentityStub{
		next: domain.Credential{
			AccessToken:  "access-refreshed",
			RefreshToken: "refresh-rotated",
			SessionID:    "session-1",
			IssuedAt:     base,
			ExpiresAt:    base.Add(15 * time.Minute),
		},
	}

	manager := NewSessionManager(identity, zaptest.NewLogger(t))
	manager.WithClock(func() time.Time { return base })
	seedSession(t, manager, 2*time.Minute, base)

	token, err := manager.GetAccessToken(context.Background())
	if err != nil {
		t.Fatalf("GetAccessToken returned error: %v", err)
	}
	if token != "access-refreshed" {
		t.Fatalf("expected refreshed token, got %q", token)
	}
	if identity.calls() != 1 {
		t.Fatalf("expected one refresh call, got %d", identity.calls())
	}

	current := manager.CurrentSession()
	if current == nil || current.RefreshToken != "refresh-rotated" {
		t.Fatalf("expected rotated refresh token cached, got %+v", current)
	}
}

func TestGetAccessTokenCoalescesConcurrentCallers(t *testing.T) {
	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	identity := &sessionIdentityStub{
		refreshDelay: 50 * time.Millisecond,
		next: domain.Credential{
			AccessToken:  "access-refreshed",
			RefreshToken: "refresh-rotated",
			ExpiresAt:    base.Add(15 * time.Minute),
		},
	}

	manager := NewSessionManager(identity, zaptest.NewLogger(t))
	manager.WithClock(func() time.Time { return base })
	seedSession(t, manager, time.Minute, base)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = manager.GetAccessToken(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d returned error: %v", i, errs[i])
		}
		if results[i] != "access-refreshed" {
			t.Fatalf("caller %d got token %q", i, results[i])
		}
	}
	if identity.calls() != 1 {
		t.Fatalf("expected a single coalesced refresh, got %d", identity.calls())
	}
}

func TestGetAccessTokenExpiredSessionClearsState(t *testing.T) {
	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	identity := &sessionIdentityStub{refreshErr: ErrSessionExpired}

	manager := NewSessionManager(identity, zaptest.NewLogger(t))
	manager.WithClock(func() time.Time { return base })
	seedSession(t, manager, time.Minute, base)

	if _, err := manager.GetAccessToken(context.Background()); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if manager.CurrentSession() != nil {
		t.Fatal("expected session state cleared after expiry")
	}
	if _, err := manager.GetAccessToken(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated after expiry, got %v", err)
	}
}

func TestGetAccessTokenTimesOutOnSlowBackend(t *testing.T) {
	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	identity := &sessionIdentityStub{refreshDelay: time.Second}

	manager := NewSessionManager(identity, zaptest.NewLogger(t))
	manager.WithClock(func() time.Time { return base })
	manager.WithRefreshPolicy(5*time.Minute, 50*time.Millisecond)
	seedSession(t, manager, time.Minute, base)

	start := time.Now()
	_, err := manager.GetAccessToken(context.Background())
	if !errors.Is(err, ErrRefreshTimeout) {
		t.Fatalf("expected ErrRefreshTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("refresh blocked for %v, expected bounded wait", elapsed)
	}
}

func TestGetAccessTokenUnauthenticated(t *testing.T) {
	manager := NewSessionManager(&sessionIdentityStub{}, zaptest.NewLogger(t))
	if _, err := manager.GetAccessToken(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestSignOutClearsStateEvenWhenRevokeFails(t *testing.T) {
	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	identity := &sessionIdentityStub{revokeErr: errors.New("backend down")}

	manager := NewSessionManager(identity, zaptest.NewLogger(t))
	manager.WithClock(func() time.Time { return base })
	seedSession(t, manager, 10*time.Minute, base)

	manager.SignOut(context.Background())

	if manager.CurrentSession() != nil {
		t.Fatal("expected session cleared after sign-out")
	}
	identity.mu.Lock()
	revoked := len(identity.revoked)
	identity.mu.Unlock()
	if revoked != 1 {
		t.Fatalf("expected one revoke attempt, got %d", revoked)
	}
}

func TestCurrentSessionReturnsCopy(t *testing.T) {
	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	manager := NewSessionManager(&sessionIdentityStub{}, zaptest.NewLogger(t))
	manager.WithClock(func() time.Time { return base })
	seedSession(t, manager, 10*time.Minute, base)

	first := manager.CurrentSession()
	first.AccessToken = "tampered"

	second := manager.CurrentSession()
	if second.AccessToken != "access-original" {
		t.Fatalf("mutating the returned credential leaked into manager state: %q", second.AccessToken)
	}
}
