package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"secure-user-api/internal/adapter/gin/response"
	apperrors "secure-user-api/pkg/errors"
	"secure-user-api/pkg/logger"
)

// Recovery recovers from panics, logs the stack with the request ID, and
// answers with the generic 500 body.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.WithContext(c.Request.Context(), log).Error("panic recovered",
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				response.Error(c, zap.NewNop(), apperrors.NewInternalError("panic", fmt.Errorf("%v", rec)))
			}
		}()

		c.Next()
	}
}
