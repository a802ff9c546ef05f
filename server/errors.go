package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/philtim/timearchitect/alarm"
	"github.com/philtim/timearchitect/logger"
)

// Standard error messages (don't leak internal details)
const (
	ErrMsgInvalidRequest = "Invalid request"
	ErrMsgInternalError  = "Internal server error"
)

// respondWithError sends a JSON error response and logs the actual error
func respondWithError(c *gin.Context, status int, publicMsg string, err error) {
	if err != nil {
		logger.Debugf("%s: %v", publicMsg, err)
	}
	c.JSON(status, gin.H{"error": publicMsg})
}

// respondBadRequest handles bad request errors, optionally exposing the error message
func respondBadRequest(c *gin.Context, err error, exposeError bool) {
	if exposeError && err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	respondWithError(c, http.StatusBadRequest, ErrMsgInvalidRequest, err)
}

// respondServiceUnavailable handles service unavailable errors
func respondServiceUnavailable(c *gin.Context, service string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": service + " not available"})
}

// respondAlarmError maps scheduler error codes to statuses. Validation and
// state errors are safe to show.
func respondAlarmError(c *gin.Context, err error) {
	switch alarm.ErrorCode(err) {
	case alarm.ErrInvalid:
		c.JSON(http.StatusBadRequest, gin.H{"error": alarm.ErrorDescription(err)})
	case alarm.ErrState:
		c.JSON(http.StatusConflict, gin.H{"error": alarm.ErrorDescription(err)})
	default:
		respondWithError(c, http.StatusInternalServerError, ErrMsgInternalError, err)
	}
}
