package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitebeam/construction-platform-iam/internal/usecase"
)

// ImpersonationHandler exposes the impersonation lifecycle endpoints.
type ImpersonationHandler struct {
	impersonation *usecase.ImpersonationService
}

// NewImpersonationHandler constructs ImpersonationHandler.
func NewImpersonationHandler(impersonation *usecase.ImpersonationService) *ImpersonationHandler {
	return &ImpersonationHandler{impersonation: impersonation}
}

// RegisterRoutes binds the impersonation routes.
func (h *ImpersonationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.status)
	r.POST("/start", h.start)
	r.POST("/stop", h.stop)
}

// Status godoc
// @Summary Report the session's impersonation state
// @Tags Impersonation
// @Produce json
// @Success 200 {object} ImpersonationStatusResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/impersonation [get]
func (h *ImpersonationHandler) status(c *gin.Context) {
	_, sessionID, ok := callerIdentity(c)
	if !ok {
		return
	}

	overlay, err := h.impersonation.Active(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to load impersonation state"))
		return
	}

	if overlay == nil {
		c.JSON(http.StatusOK, ImpersonationStatusResponse{Active: false})
		return
	}

	startedAt := overlay.StartedAt
	c.JSON(http.StatusOK, ImpersonationStatusResponse{
		Active:              true,
		OriginalPrincipalID: overlay.OriginalPrincipalID,
		TargetPrincipalID:   overlay.TargetPrincipalID,
		StartedAt:           &startedAt,
	})
}

// Start godoc
// @Summary Begin impersonating another profile
// @Description Places an impersonation overlay on the session. Requires the users.impersonate permission.
// @Tags Impersonation
// @Accept json
// @Produce json
// @Param request body ImpersonateStartRequest true "Impersonation target"
// @Success 200 {object} ImpersonationStatusResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/impersonation/start [post]
func (h *ImpersonationHandler) start(c *gin.Context) {
	principalID, sessionID, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req ImpersonateStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid impersonation payload"))
		return
	}

	overlay, err := h.impersonation.Start(c.Request.Context(), sessionID, principalID, req.TargetPrincipalID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "insufficient permissions"},
			{Err: usecase.ErrTargetNotFound, Status: http.StatusNotFound, Message: "target profile not found"},
		}, http.StatusBadRequest, "failed to start impersonation")
		return
	}

	startedAt := overlay.StartedAt
	c.JSON(http.StatusOK, ImpersonationStatusResponse{
		Active:              true,
		OriginalPrincipalID: overlay.OriginalPrincipalID,
		TargetPrincipalID:   overlay.TargetPrincipalID,
		StartedAt:           &startedAt,
	})
}

// Stop godoc
// @Summary Stop impersonating
// @Description Tears down the session's impersonation overlay.
// @Tags Impersonation
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/impersonation/stop [post]
func (h *ImpersonationHandler) stop(c *gin.Context) {
	_, sessionID, ok := callerIdentity(c)
	if !ok {
		return
	}

	if err := h.impersonation.Stop(c.Request.Context(), sessionID); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrNotImpersonating, Status: http.StatusConflict, Message: "session is not impersonating"},
		}, http.StatusInternalServerError, "failed to stop impersonation")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "impersonation stopped"})
}
