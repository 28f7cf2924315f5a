package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitebeam/construction-platform-iam/internal/authz"
	"github.com/sitebeam/construction-platform-iam/internal/usecase"
)

// AuthzHandler answers permission questions for the caller's session.
type AuthzHandler struct {
	authorization *usecase.AuthorizationService
}

// NewAuthzHandler constructs AuthzHandler.
func NewAuthzHandler(authorization *usecase.AuthorizationService) *AuthzHandler {
	return &AuthzHandler{authorization: authorization}
}

// RegisterRoutes binds the authorization routes.
func (h *AuthzHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/check", h.check)
	r.GET("/approval-limit", h.approvalLimit)
}

// Check godoc
// @Summary Evaluate a permission check
// @Description Decides whether the caller's effective profile may perform the action, optionally against resource ownership facts. Unknown actions always deny.
// @Tags Authorization
// @Accept json
// @Produce json
// @Param request body AuthzCheckRequest true "Check payload"
// @Success 200 {object} AuthzCheckResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/authz/check [post]
func (h *AuthzHandler) check(c *gin.Context) {
	principalID, sessionID, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req AuthzCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid check payload"))
		return
	}

	var resource *authz.Resource
	if req.Resource != nil {
		resource = &authz.Resource{
			OwnerID:         req.Resource.OwnerID,
			AssignedUserIDs: req.Resource.AssignedUserIDs,
			OwnerCompanyID:  req.Resource.OwnerCompanyID,
		}
	}

	decision, err := h.authorization.Check(c.Request.Context(), sessionID, principalID, req.Action, resource)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrProfileNotFound, Status: http.StatusNotFound, Message: "profile not found"},
			{Err: usecase.ErrBackendUnavailable, Status: http.StatusServiceUnavailable, Message: "profile backend unavailable"},
		}, http.StatusInternalServerError, "authorization check failed")
		return
	}

	c.JSON(http.StatusOK, AuthzCheckResponse{Allow: decision.Allow, Reason: decision.Reason})
}

// ApprovalLimit godoc
// @Summary Report the caller's purchase approval limit
// @Tags Authorization
// @Produce json
// @Success 200 {object} ApprovalLimitResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/authz/approval-limit [get]
func (h *AuthzHandler) approvalLimit(c *gin.Context) {
	principalID, sessionID, ok := callerIdentity(c)
	if !ok {
		return
	}

	limit, err := h.authorization.ApprovalLimit(c.Request.Context(), sessionID, principalID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrProfileNotFound, Status: http.StatusNotFound, Message: "profile not found"},
			{Err: usecase.ErrBackendUnavailable, Status: http.StatusServiceUnavailable, Message: "profile backend unavailable"},
		}, http.StatusInternalServerError, "approval limit lookup failed")
		return
	}

	c.JSON(http.StatusOK, ApprovalLimitResponse{Limit: limit})
}
