package domain

import "time"

// Session represents a persisted login session bound to a device and its
// refresh token. The access token itself is stateless (JWT); the session row
// is the revocation anchor.
type Session struct {
	ID             string
	PrincipalID    string
	RefreshTokenID *string
	DeviceLabel    *string
	IPFirst        *string
	IPLast         *string
	UserAgent      *string
	CreatedAt      time.Time
	LastSeen       time.Time
	ExpiresAt      time.Time
	RevokedAt      *time.Time
	RevokeReason   *string
}

// IsActive reports whether the session is still valid at the supplied moment.
func (s Session) IsActive(at time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return s.ExpiresAt.After(at)
}

// Touch updates last-seen metadata for the session when activity occurs.
func (s *Session) Touch(at time.Time, ip, userAgent *string) {
	s.LastSeen = at
	if s.IPFirst == nil && ip != nil {
		ipCopy := *ip
		s.IPFirst = &ipCopy
	}
	if ip != nil {
		ipCopy := *ip
		s.IPLast = &ipCopy
	}
	if userAgent != nil {
		uaCopy := *userAgent
		s.UserAgent = &uaCopy
	}
}

// Revoke marks the session as revoked. Returns true when the session changed
// state.
func (s *Session) Revoke(at time.Time, reason string) bool {
	if s.RevokedAt != nil {
		return false
	}
	s.RevokedAt = &at
	s.RevokeReason = &reason
	return true
}

// RefreshToken represents a persisted refresh token (stored as a hash).
type RefreshToken struct {
	ID        string
	SessionID string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Credential is the bearer credential handed to a client after sign-in or
// refresh: the raw access token plus the material needed to refresh it.
type Credential struct {
	AccessToken  string
	RefreshToken string
	PrincipalID  string
	SessionID    string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// RemainingTTL reports how long the access token stays valid from the
// supplied moment.
func (c Credential) RemainingTTL(at time.Time) time.Duration {
	return c.ExpiresAt.Sub(at)
}

// ImpersonationContext is the overlay a privileged principal places on a
// session to act as another profile. It always points back to the original
// principal so it can be torn down and audited.
type ImpersonationContext struct {
	SessionID           string
	OriginalPrincipalID string
	TargetPrincipalID   string
	StartedAt           time.Time
}
