package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitebeam/construction-platform-iam/internal/transport/http/middleware"
)

// callerIdentity extracts the authenticated principal and session from the
// request context, aborting with 401 when authentication middleware did not
// run or did not populate them.
func callerIdentity(c *gin.Context) (principalID, sessionID string, ok bool) {
	principalID, ok = middleware.AuthenticatedPrincipalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return "", "", false
	}
	sessionID, _ = middleware.AuthenticatedSessionID(c)
	return principalID, sessionID, true
}
