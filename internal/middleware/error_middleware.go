package middleware

import (
	"relay-chat/internal/transport/httpdto"
	relay_errors "relay-chat/pkg/errors"
	"relay-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error a handler attached with c.Error.
// Client errors keep their message; everything else is logged and masked.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := relay_errors.HTTPStatus(err)
		message := err.Error()
		if status >= 500 {
			if l != nil {
				l.WithContext(c.Request.Context()).Error("request failed",
					zap.String("path", c.FullPath()),
					zap.Error(err))
			}
			message = "request failed"
		}
		c.JSON(status, httpdto.NewErrorResponse(message, relay_errors.Code(err)))
	}
}
