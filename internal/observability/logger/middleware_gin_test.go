package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	obscontext "github.com/derrickmugabwa/kenya-food-database-api/internal/observability/context"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newLoggedEngine(t *testing.T, cfg MiddlewareConfig) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)

	r := gin.New()
	r.Use(GinMiddleware(cfg))
	return r, logs
}

func TestGinMiddlewareKeepsValidRequestID(t *testing.T) {
	r, logs := newLoggedEngine(t, MiddlewareConfig{})
	var seen string
	r.GET("/v1/foods", func(c *gin.Context) {
		seen = obscontext.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/foods?api_key=leak", nil)
	req.Header.Set(HeaderRequestID, "req-abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "req-abc", seen)
	assert.Equal(t, "req-abc", rec.Header().Get(HeaderRequestID))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/v1/foods", fields["path"])
	assert.Equal(t, "/v1/foods", fields["route"])
	assert.Equal(t, "req-abc", fields["request_id"])
}

func TestGinMiddlewareReplacesInvalidRequestID(t *testing.T) {
	r, _ := newLoggedEngine(t, MiddlewareConfig{})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", maxRequestIDLen+1))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	got := rec.Header().Get(HeaderRequestID)
	assert.NotEmpty(t, got)
	assert.Len(t, got, 36)
}

func TestGinMiddlewareWarnsOnRejectedCredentials(t *testing.T) {
	r, logs := newLoggedEngine(t, MiddlewareConfig{
		ErrorClassifier: func(error) (string, string) { return "unauthorized", "unauthorized" },
	})
	r.GET("/v1/nutrients", func(c *gin.Context) {
		c.Set("auth_method", "api_key")
		_ = c.Error(errors.New("bad key"))
		c.Status(http.StatusUnauthorized)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/nutrients", nil))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "unauthorized", fields["error_type"])
	assert.Equal(t, "api_key", fields["auth_method"])
	assert.NotContains(t, fields, "error")
}

func TestRequestLevel(t *testing.T) {
	quiet := []string{"/metrics"}
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/metrics", http.StatusOK, quiet))
	assert.Equal(t, zapcore.ErrorLevel, requestLevel("/metrics", http.StatusInternalServerError, quiet))
	assert.Equal(t, zapcore.WarnLevel, requestLevel("/v1/oauth/token", http.StatusTooManyRequests, quiet))
	assert.Equal(t, zapcore.InfoLevel, requestLevel("/v1/foods", http.StatusOK, quiet))
}
