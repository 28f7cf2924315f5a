package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
	"github.com/sitebeam/construction-platform-iam/internal/core/port"
)

const (
	defaultRefreshMargin  = 5 * time.Minute
	defaultRefreshTimeout = 10 * time.Second

	refreshFlightKey = "refresh"
)

// SessionManager owns the in-process session state and the token refresh
// policy. Reads are synchronous; only GetAccessToken may block, and then only
// when the cached access token is inside the refresh margin.
type SessionManager struct {
	identity port.IdentityProvider
	profiles port.ProfileCache
	logger   *zap.Logger

	refreshMargin  time.Duration
	refreshTimeout time.Duration

	mu      sync.RWMutex
	current *domain.Credential

	flight singleflight.Group
	now    func() time.Time
}

// NewSessionManager constructs a SessionManager backed by the supplied
// identity provider.
func NewSessionManager(identity port.IdentityProvider, log *zap.Logger) *SessionManager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &SessionManager{
		identity:       identity,
		logger:         log,
		refreshMargin:  defaultRefreshMargin,
		refreshTimeout: defaultRefreshTimeout,
	}
	m.now = func() time.Time { return time.Now().UTC() }
	return m
}

// WithClock overrides the internal clock for deterministic tests.
func (m *SessionManager) WithClock(clock func() time.Time) {
	if clock != nil {
		m.now = clock
	}
}

// WithProfileCache attaches a profile cache that is invalidated whenever the
// session rotates, so a fresh profile is resolved for the new credential.
func (m *SessionManager) WithProfileCache(cache port.ProfileCache) *SessionManager {
	m.profiles = cache
	return m
}

// WithRefreshPolicy overrides the refresh margin and timeout.
func (m *SessionManager) WithRefreshPolicy(margin, timeout time.Duration) *SessionManager {
	if margin > 0 {
		m.refreshMargin = margin
	}
	if timeout > 0 {
		m.refreshTimeout = timeout
	}
	return m
}

// SignIn exchanges credentials for a session and caches it.
func (m *SessionManager) SignIn(ctx context.Context, email, password string) (domain.Credential, error) {
	credential, err := m.identity.SignIn(ctx, email, password)
	if err != nil {
		return domain.Credential{}, err
	}

	m.mu.Lock()
	m.current = &credential
	m.mu.Unlock()

	m.dropCachedProfile(ctx, credential.PrincipalID)

	return credential, nil
}

// CurrentSession returns the cached session state without blocking. The
// returned credential may hold an access token that is about to expire;
// callers needing a usable token must go through GetAccessToken.
func (m *SessionManager) CurrentSession() *domain.Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	copied := *m.current
	return &copied
}

// SignOut tears down the session. Local state is always cleared; failure to
// revoke on the backend is logged, not surfaced, so sign-out cannot fail.
func (m *SessionManager) SignOut(ctx context.Context) {
	m.mu.Lock()
	current := m.current
	m.current = nil
	m.mu.Unlock()

	if current == nil {
		return
	}

	m.dropCachedProfile(ctx, current.PrincipalID)

	if err := m.identity.Revoke(ctx, current.RefreshToken); err != nil {
		m.logger.Warn("backend revoke failed during sign-out",
			zap.String("session_id", current.SessionID),
			zap.Error(err),
		)
	}
}

// GetAccessToken returns an access token valid for at least the refresh
// margin. When the cached token is inside the margin, one refresh runs
// regardless of how many callers arrive; all of them receive the same result.
func (m *SessionManager) GetAccessToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()

	if current == nil {
		return "", ErrNotAuthenticated
	}

	if current.RemainingTTL(m.now()) > m.refreshMargin {
		return current.AccessToken, nil
	}

	return m.refreshShared(ctx, current.RefreshToken)
}

// refreshShared coalesces concurrent refresh attempts into a single backend
// call bounded by the refresh timeout.
func (m *SessionManager) refreshShared(ctx context.Context, refreshToken string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()

	ch := m.flight.DoChan(refreshFlightKey, func() (any, error) {
		return m.doRefresh(refreshToken)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, context.DeadlineExceeded) {
				return "", ErrRefreshTimeout
			}
			return "", res.Err
		}
		credential, ok := res.Val.(domain.Credential)
		if !ok {
			return "", fmt.Errorf("unexpected refresh result type %T", res.Val)
		}
		return credential.AccessToken, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrRefreshTimeout
		}
		return "", ctx.Err()
	}
}

func (m *SessionManager) doRefresh(refreshToken string) (domain.Credential, error) {
	// The flight outlives any individual caller's deadline so late arrivals
	// still get the shared result.
	ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
	defer cancel()

	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()

	// Another flight may have refreshed while this caller was queued.
	if current != nil && current.RemainingTTL(m.now()) > m.refreshMargin {
		return *current, nil
	}
	if current != nil {
		refreshToken = current.RefreshToken
	}

	credential, err := m.identity.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrAccountDisabled) {
			// The session is gone; clear state so callers fail fast instead
			// of retrying a dead refresh token.
			m.mu.Lock()
			m.current = nil
			m.mu.Unlock()
		}
		return domain.Credential{}, err
	}

	m.mu.Lock()
	m.current = &credential
	m.mu.Unlock()

	m.dropCachedProfile(ctx, credential.PrincipalID)

	return credential, nil
}

func (m *SessionManager) dropCachedProfile(ctx context.Context, principalID string) {
	if m.profiles == nil || principalID == "" {
		return
	}
	if err := m.profiles.Delete(ctx, principalID); err != nil {
		m.logger.Warn("failed to drop cached profile",
			zap.String("principal_id", principalID),
			zap.Error(err),
		)
	}
}
