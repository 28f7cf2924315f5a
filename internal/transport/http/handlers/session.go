package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitebeam/construction-platform-iam/internal/core/port"
	"github.com/sitebeam/construction-platform-iam/internal/repository"
)

// SessionHandler lets a principal inspect and revoke their own sessions.
type SessionHandler struct {
	sessions port.SessionRepository
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions port.SessionRepository) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes binds the session routes.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.list)
	r.DELETE("/:id", h.revoke)
}

// List godoc
// @Summary List the caller's sessions
// @Tags Sessions
// @Produce json
// @Success 200 {array} SessionSummary
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/sessions [get]
func (h *SessionHandler) list(c *gin.Context) {
	principalID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	sessions, err := h.sessions.ListByPrincipal(c.Request.Context(), principalID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list sessions"))
		return
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, newSessionSummary(session))
	}

	c.JSON(http.StatusOK, summaries)
}

// Revoke godoc
// @Summary Revoke one of the caller's sessions
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 204 {string} string ""
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{id} [delete]
func (h *SessionHandler) revoke(c *gin.Context) {
	principalID, _, ok := callerIdentity(c)
	if !ok {
		return
	}

	sessionID := c.Param("id")
	session, err := h.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "session not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to load session"))
		return
	}

	// A principal may only revoke their own sessions.
	if session.PrincipalID != principalID {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "session not found"))
		return
	}

	if err := h.sessions.Revoke(c.Request.Context(), sessionID, "manual_revoke"); err != nil && !errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke session"))
		return
	}

	c.Status(http.StatusNoContent)
}
