package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apikeydomain "github.com/derrickmugabwa/kenya-food-database-api/internal/apikey/domain"
	authdomain "github.com/derrickmugabwa/kenya-food-database-api/internal/auth/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/oauth2provider"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/scope"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/session"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/authorization"
	catalogdomain "github.com/derrickmugabwa/kenya-food-database-api/internal/catalog/domain"
	usagedomain "github.com/derrickmugabwa/kenya-food-database-api/internal/usage/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
		field  string
	}{
		{"validation", newValidationError("token", "required", "token is required"), http.StatusBadRequest, "validation_error", "token"},
		{"weak password", authdomain.ErrWeakPassword, http.StatusBadRequest, "validation_error", "password"},
		{"wrapped invalid name", fmt.Errorf("create: %w", apikeydomain.ErrInvalidName), http.StatusBadRequest, "validation_error", "name"},
		{"unknown scope", scope.ErrInvalidScope, http.StatusBadRequest, "validation_error", "scopes"},
		{"insufficient scope", &oauth2provider.InsufficientScopeError{Required: []scope.Scope{scope.ReadUsage}}, http.StatusForbidden, "insufficient_scope", ""},
		{"auth required", ErrAuthRequired, http.StatusUnauthorized, "unauthorized", ""},
		{"bad credentials", authdomain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", ""},
		{"bad session", session.ErrInvalidToken, http.StatusUnauthorized, "unauthorized", ""},
		{"invalid actor", authorization.ErrInvalidActor, http.StatusUnauthorized, "unauthorized", ""},
		{"casbin forbidden", authorization.ErrForbidden, http.StatusForbidden, "forbidden", ""},
		{"client owner forbidden", oauth2provider.ErrForbidden, http.StatusForbidden, "forbidden", ""},
		{"user exists", authdomain.ErrUserExists, http.StatusConflict, "conflict", ""},
		{"client exists", oauth2provider.ErrClientExists, http.StatusConflict, "conflict", ""},
		{"key missing", apikeydomain.ErrNotFound, http.StatusNotFound, "not_found", ""},
		{"client missing", oauth2provider.ErrClientNotFound, http.StatusNotFound, "not_found", ""},
		{"revoke unknown token", oauth2provider.ErrInvalidToken, http.StatusNotFound, "not_found", ""},
		{"usage missing", usagedomain.ErrNotFound, http.StatusNotFound, "not_found", ""},
		{"food missing", catalogdomain.ErrNotFound, http.StatusNotFound, "not_found", ""},
		{"gorm missing", gorm.ErrRecordNotFound, http.StatusNotFound, "not_found", ""},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited", ""},
		{"unavailable", ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable", ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.typ, payload.Type)
			if tc.field != "" {
				require.Len(t, payload.Errors, 1)
				assert.Equal(t, tc.field, payload.Errors[0].Field)
			}
		})
	}
}

func TestInsufficientScopeMessageListsAlternatives(t *testing.T) {
	_, payload := mapError(&oauth2provider.InsufficientScopeError{Required: []scope.Scope{scope.ReadFoods, scope.Admin}})
	assert.Contains(t, payload.Message, "Insufficient scope. Required:")
	assert.Contains(t, payload.Message, "read:foods")
	assert.Contains(t, payload.Message, "admin")
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(apikeydomain.ErrInvalidTier)
	assert.Equal(t, "validation_error", typ)
	assert.Equal(t, "invalid_tier", code)

	typ, code = classifyErrorForLog(errors.New("db down"))
	assert.Equal(t, "internal_error", typ)
	assert.Equal(t, "internal_error", code)
}

func TestErrorHandlingMiddlewareRendersEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/boom", func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":{"type":"not_found","message":"not found"}}`, rec.Body.String())
}
