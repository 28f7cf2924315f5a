package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitebeam/construction-platform-iam/internal/infra/security"
)

// Key rotation is manual and rare, so downstream verifiers may cache
// the set for an hour.
const jwksCacheControl = "public, max-age=3600"

// JWKSHandler publishes the RSA public keys other platform services
// use to verify access tokens without calling back into this service.
type JWKSHandler struct {
	manager *security.JWTManager
}

// NewJWKSHandler constructs a JWKS handler backed by the supplied manager.
func NewJWKSHandler(manager *security.JWTManager) *JWKSHandler {
	return &JWKSHandler{manager: manager}
}

// Keys godoc
// @Summary Retrieve JSON Web Key Set
// @Description Public verification keys for access tokens issued by this service.
// @Tags Public
// @Produce json
// @Success 200 {object} JWKSResponse
// @Failure 500 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /.well-known/jwks.json [get]
func (h *JWKSHandler) Keys(c *gin.Context) {
	if h == nil || h.manager == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "key set not available"))
		return
	}

	payload, err := h.manager.JWKS()
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to render jwks"))
		return
	}

	c.Header("Cache-Control", jwksCacheControl)
	c.Data(http.StatusOK, "application/json", payload)
}
