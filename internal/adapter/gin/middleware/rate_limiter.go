package middleware

import (
	"strconv"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"secure-user-api/internal/adapter/gin/response"
	"secure-user-api/internal/adapter/ratelimit"
	apperrors "secure-user-api/pkg/errors"
	"secure-user-api/pkg/logger"
)

const (
	// UserIDHeader is an optional caller hint that splits one address into several buckets.
	UserIDHeader = "X-User-Id"
	// AnonymousCaller stands in for a missing UserIDHeader.
	AnonymousCaller = "anonymous"

	maxUserIDLen = 128
)

// RateLimitKey identifies the caller as "<client ip>:<user id hint>".
func RateLimitKey(c *gin.Context) string {
	hint := c.GetHeader(UserIDHeader)
	if hint == "" {
		hint = AnonymousCaller
	}
	return c.ClientIP() + ":" + clip(hint, maxUserIDLen)
}

// clip cuts s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// RateLimiter returns a Gin middleware that admits or rejects each request
// through store. When the store itself fails the request is let through.
func RateLimiter(store ratelimit.Store, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.Next()
			return
		}

		key := RateLimitKey(c)
		c.Request = c.Request.WithContext(logger.WithCaller(c.Request.Context(), key))

		res, err := store.Allow(c.Request.Context(), key)
		if err != nil {
			// Log error but allow request (fail-open strategy)
			log.Warn("rate limiter unavailable, allowing request", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			log.Info("rate limit exceeded", zap.String("key", key))
			response.Error(c, log, apperrors.NewRateLimitError(res.Limit, res.RetryAfter))
			return
		}

		c.Next()
	}
}
