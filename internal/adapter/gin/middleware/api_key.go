package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"secure-user-api/internal/adapter/gin/response"
	apperrors "secure-user-api/pkg/errors"
	"secure-user-api/pkg/security"
)

// APIKeyAuth rejects requests whose header does not carry one of the active keys.
// It must run before anything that touches storage.
func APIKeyAuth(verifier *security.KeyVerifier, header string, log *zap.Logger) gin.HandlerFunc {
	if header == "" {
		header = security.DefaultAPIKeyHeader
	}

	return func(c *gin.Context) {
		if err := verifier.Verify(c.GetHeader(header)); err != nil {
			if !errors.Is(err, apperrors.ErrServerMisconfigured) {
				log.Debug("api key rejected",
					zap.String("path", c.Request.URL.Path),
					zap.String("client_ip", c.ClientIP()),
					zap.Error(err),
				)
			}
			response.Error(c, log, err)
			return
		}

		c.Next()
	}
}
