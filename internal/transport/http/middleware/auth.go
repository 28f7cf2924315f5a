package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitebeam/construction-platform-iam/internal/authz"
	"github.com/sitebeam/construction-platform-iam/internal/infra/security"
	"github.com/sitebeam/construction-platform-iam/internal/usecase"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireAuth validates the Authorization header and stores the principal and
// session identifiers for downstream handlers. Impersonation is never minted
// into tokens; the overlay is resolved per-request by the authorization layer.
func RequireAuth(jwtManager *security.JWTManager, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing access token"))
			return
		}

		if jwtManager == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "token verification is not configured"))
			return
		}

		claims, err := jwtManager.ParseAccessToken(token, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid or expired access token"))
			return
		}

		c.Set(PrincipalIDKey, claims.PrincipalID)
		c.Set(SessionIDKey, claims.SessionID)
		c.Set(ClaimsKey, claims)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.PrincipalID = claims.PrincipalID
		}

		c.Next()
	}
}

// RequirePermission gates the route on an authorization decision for the
// session's effective profile, so impersonated sessions are checked against
// the target's permissions.
func RequirePermission(authorization *usecase.AuthorizationService, action authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		principalID, ok := AuthenticatedPrincipalID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}
		sessionID, _ := AuthenticatedSessionID(c)

		decision, err := authorization.Check(c.Request.Context(), sessionID, principalID, string(action), nil)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "authorization check failed"))
			return
		}
		if !decision.Allow {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}

// AuthenticatedPrincipalID retrieves the principal ID from context (helper for handlers)
func AuthenticatedPrincipalID(c *gin.Context) (string, bool) {
	principalID, exists := c.Get(PrincipalIDKey)
	if !exists {
		return "", false
	}
	if id, ok := principalID.(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// AuthenticatedSessionID retrieves the session ID from context (helper for handlers)
func AuthenticatedSessionID(c *gin.Context) (string, bool) {
	sessionID, exists := c.Get(SessionIDKey)
	if !exists {
		return "", false
	}
	if id, ok := sessionID.(string); ok && id != "" {
		return id, true
	}
	return "", false
}
