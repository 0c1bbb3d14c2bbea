package server

import (
	"errors"
	"net/http"

	apikeydomain "github.com/derrickmugabwa/kenya-food-database-api/internal/apikey/domain"
	auditdomain "github.com/derrickmugabwa/kenya-food-database-api/internal/audit/domain"
	authdomain "github.com/derrickmugabwa/kenya-food-database-api/internal/auth/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/oauth2provider"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/scope"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/session"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/authorization"
	catalogdomain "github.com/derrickmugabwa/kenya-food-database-api/internal/catalog/domain"
	usagedomain "github.com/derrickmugabwa/kenya-food-database-api/internal/usage/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAuthRequired       = errors.New("authentication_required")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

const authRequiredMessage = "Authentication required. Please provide a valid JWT token, OAuth token, or API key."

// fieldErrors maps domain validation sentinels onto the field they concern.
var fieldErrors = []struct {
	err     error
	field   string
	code    string
	message string
}{
	{authdomain.ErrWeakPassword, "password", "weak_password", "password must be at least 8 characters"},
	{authdomain.ErrInvalidTier, "apiTier", "invalid_tier", "unknown api tier"},
	{authdomain.ErrInvalidRateLimit, "apiRateLimit", "invalid_rate_limit", "api rate limit must be positive"},
	{apikeydomain.ErrInvalidName, "name", "invalid_name", "name is required and at most 100 characters"},
	{apikeydomain.ErrInvalidTier, "tier", "invalid_tier", "unknown api key tier"},
	{apikeydomain.ErrInvalidLimit, "rateLimit", "invalid_rate_limit", "rate limit must not be negative"},
	{oauth2provider.ErrInvalidScope, "scopes", "invalid_scope", "unknown scope requested"},
	{scope.ErrInvalidScope, "scopes", "invalid_scope", "unknown scope requested"},
	{oauth2provider.ErrInvalidRequest, "request", "invalid_request", "invalid request"},
	{ErrInvalidRequest, "request", "invalid_request", "invalid request"},
	{auditdomain.ErrInvalidTimeRange, "startAt", "invalid_time_range", "startAt must not be after endAt"},
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	for _, fe := range fieldErrors {
		if errors.Is(err, fe.err) {
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Message: "validation error",
				Errors:  []ValidationError{{Field: fe.field, Code: fe.code, Message: fe.message}},
			}
		}
	}

	var scopeErr *oauth2provider.InsufficientScopeError
	if errors.As(err, &scopeErr) {
		return http.StatusForbidden, errorPayload{
			Type:    "insufficient_scope",
			Message: scopeErr.Error(),
		}
	}

	switch {
	case errors.Is(err, ErrAuthRequired):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: authRequiredMessage,
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, oauth2provider.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, oauth2provider.ErrClientExists),
		db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "rate limit exceeded",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, apikeydomain.ErrNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, oauth2provider.ErrClientNotFound),
		errors.Is(err, oauth2provider.ErrInvalidToken),
		errors.Is(err, usagedomain.ErrNotFound),
		errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog feeds the request logger a low-cardinality type and code.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return "internal_error", code
	}
	return payload.Type, code
}
