package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports liveness status.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse aggregates dependency readiness checks.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ProfileView describes the profile representation returned by the API.
type ProfileView struct {
	PrincipalID string                           `json:"principal_id"`
	Email       string                           `json:"email"`
	FirstName   string                           `json:"first_name"`
	LastName    string                           `json:"last_name"`
	Role        domain.Role                      `json:"role"`
	Seniority   domain.Seniority                 `json:"seniority"`
	CompanyID   *string                          `json:"company_id,omitempty"`
	IsActive    bool                             `json:"is_active"`
	Overrides   map[string]domain.OverrideEffect `json:"overrides,omitempty"`
	Version     int64                            `json:"version"`
}

func newProfileView(profile domain.Profile) ProfileView {
	return ProfileView{
		PrincipalID: profile.PrincipalID,
		Email:       profile.Email,
		FirstName:   profile.FirstName,
		LastName:    profile.LastName,
		Role:        profile.Role,
		Seniority:   profile.Seniority,
		CompanyID:   profile.CompanyID,
		IsActive:    profile.IsActive,
		Overrides:   profile.Overrides,
		Version:     profile.Version,
	}
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	SessionID    string      `json:"session_id"`
	Profile      ProfileView `json:"profile"`
}

// TokenRefreshRequest represents the payload to refresh an access token.
type TokenRefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenRefreshResponse contains tokens issued by the refresh endpoint.
type TokenRefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// LogoutRequest carries the refresh token to revoke on logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SessionSummary provides a compact view of a stored session.
type SessionSummary struct {
	ID          string     `json:"id"`
	DeviceLabel *string    `json:"device_label,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastSeen    time.Time  `json:"last_seen"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

func newSessionSummary(session domain.Session) SessionSummary {
	return SessionSummary{
		ID:          session.ID,
		DeviceLabel: session.DeviceLabel,
		CreatedAt:   session.CreatedAt,
		LastSeen:    session.LastSeen,
		ExpiresAt:   session.ExpiresAt,
		RevokedAt:   session.RevokedAt,
	}
}

// UpdateContactRequest carries self-service contact field edits.
type UpdateContactRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

// CreateProfileRequest defines the administrative profile creation payload.
type CreateProfileRequest struct {
	Email     string           `json:"email" binding:"required,email"`
	Password  string           `json:"password" binding:"required"`
	FirstName string           `json:"first_name"`
	LastName  string           `json:"last_name"`
	Role      domain.Role      `json:"role" binding:"required"`
	Seniority domain.Seniority `json:"seniority"`
	CompanyID *string          `json:"company_id"`
}

// SetRoleRequest changes a profile's role and seniority.
type SetRoleRequest struct {
	Role      domain.Role      `json:"role" binding:"required"`
	Seniority domain.Seniority `json:"seniority"`
}

// DeactivateRequest carries the reason recorded with a deactivation.
type DeactivateRequest struct {
	Reason string `json:"reason"`
}

// SetOverridesRequest replaces a profile's explicit permission overrides.
type SetOverridesRequest struct {
	Overrides map[string]domain.OverrideEffect `json:"overrides" binding:"required"`
}

// ImpersonateStartRequest names the profile to impersonate.
type ImpersonateStartRequest struct {
	TargetPrincipalID string `json:"target_principal_id" binding:"required"`
}

// ImpersonationStatusResponse reports the impersonation state of the session.
type ImpersonationStatusResponse struct {
	Active              bool       `json:"active"`
	OriginalPrincipalID string     `json:"original_principal_id,omitempty"`
	TargetPrincipalID   string     `json:"target_principal_id,omitempty"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
}

// AuthzResource carries the ownership facts for a contextual permission check.
type AuthzResource struct {
	OwnerID         string   `json:"owner_id"`
	AssignedUserIDs []string `json:"assigned_user_ids"`
	OwnerCompanyID  string   `json:"owner_company_id"`
}

// AuthzCheckRequest asks whether the caller may perform an action.
type AuthzCheckRequest struct {
	Action   string         `json:"action" binding:"required"`
	Resource *AuthzResource `json:"resource"`
}

// AuthzCheckResponse reports an authorization decision.
type AuthzCheckResponse struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason"`
}

// ApprovalLimitResponse reports the caller's purchase approval cap. A limit of
// -1 means unlimited.
type ApprovalLimitResponse struct {
	Limit int64 `json:"limit"`
}
