package security

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

// ErrKeyIDMissing indicates no kid is associated with the supplied key.
var ErrKeyIDMissing = errors.New("jwt: missing key identifier")

// ErrKeyNotRegistered indicates a supplied kid is unknown to the JWT manager.
var ErrKeyNotRegistered = errors.New("jwt: key not registered")

// ErrInvalidToken indicates the supplied token failed signature or claim validation.
var ErrInvalidToken = errors.New("jwt: invalid token")

// JWTManager coordinates signing key retrieval and JWKS generation.
type JWTManager struct {
	KeyProvider KeyProvider
	mu          sync.RWMutex
	publicKeys  map[string]*rsa.PublicKey
	now         func() time.Time
}

// NewJWTManager constructs a JWTManager for the supplied key provider.
func NewJWTManager(provider KeyProvider) *JWTManager {
	mgr := &JWTManager{
		KeyProvider: provider,
		publicKeys:  make(map[string]*rsa.PublicKey),
		now:         time.Now,
	}

	if enumerator, ok := provider.(interface {
		ListVerificationKeys() map[string]*rsa.PublicKey
	}); ok {
		for kid, key := range enumerator.ListVerificationKeys() {
			_ = mgr.RegisterPublicKey(kid, key)
		}
	}

	return mgr
}

// WithClock overrides the time source used to validate exp/nbf claims.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	if now != nil {
		m.now = now
	}
	return m
}

// RegisterPublicKey associates a kid with a public key for JWKS publication and future lookup.
func (m *JWTManager) RegisterPublicKey(kid string, key *rsa.PublicKey) error {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return ErrKeyIDMissing
	}
	if key == nil {
		return fmt.Errorf("jwt: public key for %s is nil", kid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.publicKeys[kid] = key
	return nil
}

// GetSigningKey retrieves the active signing key from the provider.
func (m *JWTManager) GetSigningKey() (*rsa.PrivateKey, error) {
	if m.KeyProvider == nil {
		return nil, fmt.Errorf("jwt: key provider not configured")
	}
	return m.KeyProvider.GetSigningKey()
}

// GetVerificationKey retrieves a public key by kid.
func (m *JWTManager) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return nil, ErrKeyIDMissing
	}

	m.mu.RLock()
	key, ok := m.publicKeys[kid]
	m.mu.RUnlock()
	if ok {
		return key, nil
	}

	if m.KeyProvider != nil {
		fetched, err := m.KeyProvider.GetVerificationKey(kid)
		if err == nil {
			_ = m.RegisterPublicKey(kid, fetched)
			return fetched, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrKeyNotRegistered, kid)
}

// JWKS produces the JSON Web Key Set for registered keys.
func (m *JWTManager) JWKS() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.publicKeys) == 0 {
		return json.Marshal(struct {
			Keys []any `json:"keys"`
		}{Keys: []any{}})
	}

	keys := make([]map[string]string, 0, len(m.publicKeys))
	for kid, key := range m.publicKeys {
		if key == nil {
			continue
		}
		keys = append(keys, buildJWK(kid, key))
	}

	payload := map[string]any{"keys": keys}
	return json.Marshal(payload)
}

func buildJWK(kid string, key *rsa.PublicKey) map[string]string {
	return map[string]string{
		"kty": "RSA",
		"use": "sig",
		"alg": "RS256",
		"kid": kid,
		"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
}

// AccessTokenClaims augments registered claims with the principal's role and
// session context. The role claim reflects the real principal; impersonation
// overlays are resolved server-side and never minted into tokens.
type AccessTokenClaims struct {
	PrincipalID    string  `json:"uid"`
	SessionID      string  `json:"sid,omitempty"`
	Role           string  `json:"role,omitempty"`
	CompanyID      *string `json:"cid,omitempty"`
	ProfileVersion int64   `json:"pv,omitempty"`
	jwt.RegisteredClaims
}

// AccessTokenOptions configures creation of access token claims.
type AccessTokenOptions struct {
	PrincipalID    string
	SessionID      string
	Role           string
	CompanyID      *string
	ProfileVersion int64
	Issuer         string
	Audience       []string
	TTL            time.Duration
	IssuedAt       time.Time
	JTI            string
}

const defaultAccessTokenTTL = 15 * time.Minute

// NewAccessTokenClaims constructs standardized access token claims.
func NewAccessTokenClaims(opts AccessTokenOptions) (*AccessTokenClaims, error) {
	principalID := strings.TrimSpace(opts.PrincipalID)
	if principalID == "" {
		return nil, fmt.Errorf("jwt: principal id is required")
	}
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}

	now := opts.IssuedAt
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	jti := strings.TrimSpace(opts.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := &AccessTokenClaims{
		PrincipalID:    principalID,
		SessionID:      strings.TrimSpace(opts.SessionID),
		Role:           strings.TrimSpace(opts.Role),
		CompanyID:      opts.CompanyID,
		ProfileVersion: opts.ProfileVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			Issuer:    issuer,
			Audience:  opts.Audience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}

	return claims, nil
}

// SignAccessToken signs the provided claims using the active signing key and kid.
func (m *JWTManager) SignAccessToken(kid string, claims *AccessTokenClaims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("jwt: access token claims required")
	}
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return "", ErrKeyIDMissing
	}

	signingKey, err := m.GetSigningKey()
	if err != nil {
		return "", fmt.Errorf("jwt: get signing key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

func (m *JWTManager) clock() func() time.Time {
	if m.now == nil {
		return time.Now
	}
	return m.now
}

// ParseAccessToken validates signature and registered claims, resolving the
// verification key from the token's kid header.
func (m *JWTManager) ParseAccessToken(tokenString, issuer string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		return m.GetVerificationKey(kid)
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(m.clock()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
