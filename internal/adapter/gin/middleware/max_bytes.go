package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"secure-user-api/internal/adapter/gin/response"
)

// DefaultMaxBodyBytes is the default maximum request body size (1 MiB).
const DefaultMaxBodyBytes = 1 << 20

// MaxBytes limits the request body size. A declared Content-Length over the
// limit is refused at once; otherwise reads past the limit fail and the
// handler answers 413 Request Entity Too Large.
func MaxBytes(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.TooLarge(c)
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
