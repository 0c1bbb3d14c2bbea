package oauth2provider

import (
	"errors"

	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/scope"
)

var (
	ErrInvalidRequest       = errors.New("invalid_request")
	ErrInvalidClient        = errors.New("invalid_client")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrInvalidScope         = errors.New("invalid_scope")
	ErrInvalidToken         = errors.New("invalid_token")
	ErrInsufficientScope    = errors.New("insufficient_scope")
	ErrClientNotFound       = errors.New("client_not_found")
	ErrForbidden            = errors.New("forbidden")
	ErrMissingSecret        = errors.New("oauth signing secret is not configured")
)

// InsufficientScopeError is returned by Validate when the token is genuine but
// carries none of the required scopes.
type InsufficientScopeError struct {
	Required []scope.Scope
}

func (e *InsufficientScopeError) Error() string {
	return "Insufficient scope. Required: " + scope.Describe(e.Required)
}

func (e *InsufficientScopeError) Is(target error) bool {
	return target == ErrInsufficientScope
}
