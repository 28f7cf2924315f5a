package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sitebeam/construction-platform-iam/internal/usecase"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth     *usecase.AuthService
	resolver *usecase.ProfileResolver
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, resolver *usecase.ProfileResolver) *AuthHandler {
	return &AuthHandler{auth: auth, resolver: resolver}
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of handlers.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	if len(loginMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
		chain = append(chain, h.login)
		r.POST("/login", chain...)
	} else {
		r.POST("/login", h.login)
	}

	r.POST("/refresh", h.refresh)
	r.POST("/logout", h.logout)
}

// Login godoc
// @Summary Sign in with email and password
// @Description Verifies credentials and opens a session, returning a token pair and the caller's profile.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login payload"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	credential, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// Disabled accounts get the same response as a wrong password
		// so login does not reveal account state.
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
			{Err: usecase.ErrAccountDisabled, Status: http.StatusUnauthorized, Message: "invalid email or password"},
		}, http.StatusInternalServerError, "sign-in failed")
		return
	}

	profile, err := h.resolver.GetProfile(c.Request.Context(), credential.PrincipalID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to load profile"))
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  credential.AccessToken,
		RefreshToken: credential.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(time.Until(credential.ExpiresAt).Seconds()),
		SessionID:    credential.SessionID,
		Profile:      newProfileView(*profile),
	})
}

// Refresh godoc
// @Summary Refresh an access token
// @Description Rotates the refresh token and issues a new access token.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body TokenRefreshRequest true "Refresh payload"
// @Success 200 {object} TokenRefreshResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) refresh(c *gin.Context) {
	var req TokenRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid refresh payload"))
		return
	}

	credential, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrSessionExpired, Status: http.StatusUnauthorized, Message: "session expired, sign in again"},
			{Err: usecase.ErrAccountDisabled, Status: http.StatusForbidden, Message: "account is disabled"},
		}, http.StatusInternalServerError, "token refresh failed")
		return
	}

	c.JSON(http.StatusOK, TokenRefreshResponse{
		AccessToken:  credential.AccessToken,
		RefreshToken: credential.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(time.Until(credential.ExpiresAt).Seconds()),
	})
}

// Logout godoc
// @Summary Sign out of the current session
// @Description Revokes the session bound to the supplied refresh token. Always succeeds for unknown tokens.
// @Tags Authentication
// @Accept json
// @Produce json
// @Success 204 {string} string ""
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid logout payload"))
		return
	}

	if err := h.auth.Revoke(c.Request.Context(), req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "logout failed"))
		return
	}

	c.Status(http.StatusNoContent)
}
