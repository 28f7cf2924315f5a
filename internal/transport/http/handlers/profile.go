package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitebeam/construction-platform-iam/internal/usecase"
)

// ProfileHandler exposes profile endpoints: self-service reads and edits plus
// administrative lifecycle operations.
type ProfileHandler struct {
	resolver      *usecase.ProfileResolver
	admin         *usecase.ProfileAdminService
	impersonation *usecase.ImpersonationService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(resolver *usecase.ProfileResolver, admin *usecase.ProfileAdminService, impersonation *usecase.ImpersonationService) *ProfileHandler {
	return &ProfileHandler{resolver: resolver, admin: admin, impersonation: impersonation}
}

// RegisterSelfRoutes binds the self-service profile routes.
func (h *ProfileHandler) RegisterSelfRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.me)
	r.PATCH("/me/contact", h.updateContact)
}

// RegisterAdminRoutes binds the administrative profile routes.
func (h *ProfileHandler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("", h.create)
	r.PUT("/:id/role", h.setRole)
	r.POST("/:id/deactivate", h.deactivate)
	r.POST("/:id/reactivate", h.reactivate)
	r.PUT("/:id/overrides", h.setOverrides)
}

// Me godoc
// @Summary Retrieve the caller's effective profile
// @Description Returns the profile permission checks currently apply to: the impersonation target while an overlay is active, otherwise the caller's own profile.
// @Tags Profiles
// @Produce json
// @Success 200 {object} ProfileView
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/profiles/me [get]
func (h *ProfileHandler) me(c *gin.Context) {
	principalID, sessionID, ok := callerIdentity(c)
	if !ok {
		return
	}

	profile, _, err := h.impersonation.EffectiveProfile(c.Request.Context(), sessionID, principalID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrProfileNotFound, Status: http.StatusNotFound, Message: "profile not found"},
			{Err: usecase.ErrBackendUnavailable, Status: http.StatusServiceUnavailable, Message: "profile backend unavailable"},
		}, http.StatusInternalServerError, "failed to load profile")
		return
	}

	c.JSON(http.StatusOK, newProfileView(*profile))
}

// UpdateContact godoc
// @Summary Update the caller's contact fields
// @Tags Profiles
// @Accept json
// @Produce json
// @Param request body UpdateContactRequest true "Contact fields"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/profiles/me/contact [patch]
func (h *ProfileHandler) updateContact(c *gin.Context) {
	principalID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid contact payload"))
		return
	}

	if err := h.admin.UpdateContact(c.Request.Context(), principalID, req.FirstName, req.LastName); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrProfileNotFound, Status: http.StatusNotFound, Message: "profile not found"},
		}, http.StatusInternalServerError, "failed to update contact")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "contact updated"})
}

// CreateProfile godoc
// @Summary Create a profile
// @Description Registers a new profile. Requires the users.manage permission.
// @Tags Profiles
// @Accept json
// @Produce json
// @Param request body CreateProfileRequest true "New profile"
// @Success 201 {object} ProfileView
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/admin/profiles [post]
func (h *ProfileHandler) create(c *gin.Context) {
	principalID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid profile payload"))
		return
	}

	profile, err := h.admin.CreateProfile(c.Request.Context(), principalID, usecase.CreateProfileInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		Seniority: req.Seniority,
		CompanyID: req.CompanyID,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "insufficient permissions"},
			{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "email already registered"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "failed to create profile")
		return
	}

	c.JSON(http.StatusCreated, newProfileView(*profile))
}

// SetRole godoc
// @Summary Change a profile's role
// @Tags Profiles
// @Accept json
// @Produce json
// @Param id path string true "Principal ID"
// @Param request body SetRoleRequest true "New role"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/admin/profiles/{id}/role [put]
func (h *ProfileHandler) setRole(c *gin.Context) {
	principalID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	err := h.admin.SetRole(c.Request.Context(), principalID, c.Param("id"), req.Role, req.Seniority)
	if err != nil {
		RespondWithMappedError(c, err, adminErrorCases(), http.StatusInternalServerError, "failed to change role")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role updated"})
}

// Deactivate godoc
// @Summary Deactivate a profile
// @Description Disables the profile and revokes all of its sessions.
// @Tags Profiles
// @Accept json
// @Produce json
// @Param id path string true "Principal ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/admin/profiles/{id}/deactivate [post]
func (h *ProfileHandler) deactivate(c *gin.Context) {
	principalID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req DeactivateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid deactivation payload"))
			return
		}
	}

	if err := h.admin.Deactivate(c.Request.Context(), principalID, c.Param("id"), req.Reason); err != nil {
		RespondWithMappedError(c, err, adminErrorCases(), http.StatusInternalServerError, "failed to deactivate profile")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "profile deactivated"})
}

// Reactivate godoc
// @Summary Reactivate a profile
// @Tags Profiles
// @Produce json
// @Param id path string true "Principal ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/admin/profiles/{id}/reactivate [post]
func (h *ProfileHandler) reactivate(c *gin.Context) {
	principalID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	if err := h.admin.Reactivate(c.Request.Context(), principalID, c.Param("id")); err != nil {
		RespondWithMappedError(c, err, adminErrorCases(), http.StatusInternalServerError, "failed to reactivate profile")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "profile reactivated"})
}

// SetOverrides godoc
// @Summary Replace a profile's permission overrides
// @Tags Profiles
// @Accept json
// @Produce json
// @Param id path string true "Principal ID"
// @Param request body SetOverridesRequest true "Overrides"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/admin/profiles/{id}/overrides [put]
func (h *ProfileHandler) setOverrides(c *gin.Context) {
	principalID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req SetOverridesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid overrides payload"))
		return
	}

	if err := h.admin.SetOverrides(c.Request.Context(), principalID, c.Param("id"), req.Overrides); err != nil {
		RespondWithMappedError(c, err, adminErrorCases(), http.StatusBadRequest, "invalid overrides")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "overrides updated"})
}

func adminErrorCases() []ErrorCase {
	return []ErrorCase{
		{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "insufficient permissions"},
		{Err: usecase.ErrProfileNotFound, Status: http.StatusNotFound, Message: "profile not found"},
		{Err: usecase.ErrBackendUnavailable, Status: http.StatusServiceUnavailable, Message: "profile backend unavailable"},
	}
}
