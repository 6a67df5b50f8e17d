package apperr

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Respond writes err as a JSON error body with the status its code maps to.
// Server-side failures are logged; client errors are not.
func Respond(c *gin.Context, logger *zap.Logger, msg string, err error) {
	code := CodeOf(err)
	status := HTTPStatus(code)
	if status >= 500 && logger != nil {
		logger.Error(msg, zap.Error(err), zap.String("code", string(code)))
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  code,
	})
}
