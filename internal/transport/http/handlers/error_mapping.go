package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorCase pairs a sentinel error from the usecase layer with the
// status and client-safe message it should surface as. Internal error
// text never reaches the response body.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError walks the cases in order and writes the first
// match. Unmatched errors get the fallback; a zero fallback status is
// treated as an internal error.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	if fallbackStatus == 0 {
		fallbackStatus = http.StatusInternalServerError
	}
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}
