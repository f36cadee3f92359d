package middleware

import (
	"errors"
	"net/http"

	"rewardvault/pkg/errutil"
	"rewardvault/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error attached with c.Error. BaseError bodies are
// passed through; anything else is reduced to its status category so driver
// or cipher internals never reach the client.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		if errors.As(last.Err, &be) {
			if be.Code == errutil.StatusInternal || be.Code == errutil.StatusDecryptionFailed {
				logger.FromContext(c.Request.Context()).Error("request failed",
					zap.String("path", c.FullPath()),
					zap.Error(last.Err),
				)
			}
			c.JSON(be.Code.HTTPStatus(), be.JSON())
			return
		}

		code := errutil.StatusOf(last.Err)
		if code == errutil.StatusInternal {
			logger.FromContext(c.Request.Context()).Error("unhandled request error",
				zap.String("path", c.FullPath()),
				zap.Error(last.Err),
			)
		}

		status := code.HTTPStatus()
		c.JSON(status, errutil.BaseError{Code: code, Message: http.StatusText(status)}.JSON())
	}
}
