package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "secure-user-api/pkg/errors"
)

// Error codes carried in ErrorResponse.Error.
const (
	CodeValidation          = "validation_error"
	CodeNotFound            = "not_found"
	CodeAlreadyExists       = "already_exists"
	CodeUnauthenticated     = "unauthenticated"
	CodeInvalidCredential   = "invalid_credential"
	CodeServerMisconfigured = "server_misconfigured"
	CodeRateLimited         = "rate_limit_exceeded"
	CodeRequestTooLarge     = "request_too_large"
	CodeInternal            = "internal_error"
)

const internalDetail = "An internal error occurred"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
	Field  string `json:"field,omitempty"`
}

// Error writes the JSON response for err and aborts the handler chain.
// Only errors from pkg/errors expose their message; anything else becomes a
// generic 500 and is logged with its cause.
func Error(c *gin.Context, log *zap.Logger, err error) {
	status, body := Build(err)

	var rl *apperrors.RateLimitError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(rl.RetryAfterSeconds()))
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	c.AbortWithStatusJSON(status, body)
}

// Build maps err to an HTTP status and response body.
func Build(err error) (int, ErrorResponse) {
	var (
		verr     *apperrors.ValidationError
		nf       *apperrors.NotFoundError
		exists   *apperrors.AlreadyExistsError
		auth     *apperrors.AuthError
		rl       *apperrors.RateLimitError
		internal *apperrors.InternalError
	)

	switch {
	case errors.As(err, &verr):
		return verr.HTTPStatus(), ErrorResponse{Error: CodeValidation, Detail: verr.Message, Field: verr.Field}
	case errors.As(err, &nf):
		return nf.HTTPStatus(), ErrorResponse{Error: CodeNotFound, Detail: nf.Error()}
	case errors.As(err, &exists):
		return exists.HTTPStatus(), ErrorResponse{Error: CodeAlreadyExists, Detail: exists.Error()}
	case errors.As(err, &auth):
		return auth.HTTPStatus(), ErrorResponse{Error: authCode(auth.Reason), Detail: auth.Message}
	case errors.As(err, &rl):
		return rl.HTTPStatus(), ErrorResponse{Error: CodeRateLimited, Detail: rl.Error()}
	case errors.As(err, &internal):
		return internal.HTTPStatus(), ErrorResponse{Error: CodeInternal, Detail: internalDetail}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: CodeInternal, Detail: internalDetail}
	}
}

func authCode(r apperrors.AuthReason) string {
	switch r {
	case apperrors.ReasonServerMisconfigured:
		return CodeServerMisconfigured
	case apperrors.ReasonInvalidCredential:
		return CodeInvalidCredential
	default:
		return CodeUnauthenticated
	}
}

// TooLarge aborts with 413 when the request body exceeds the configured limit.
func TooLarge(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
		Error:  CodeRequestTooLarge,
		Detail: "Request body too large",
	})
}
