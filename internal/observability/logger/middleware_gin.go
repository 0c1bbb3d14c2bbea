package logger

import (
	"net/http"
	"strings"
	"time"

	obscontext "github.com/derrickmugabwa/kenya-food-database-api/internal/observability/context"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	HeaderRequestID = "X-Request-Id"

	maxRequestIDLen = 128
)

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug bool
	// ErrorClassifier maps a handler error to its envelope type and code.
	ErrorClassifier func(err error) (string, string)
	// QuietRoutes are logged at debug level. Defaults to /health and /metrics.
	QuietRoutes []string
}

// GinMiddleware assigns a request id, stores client details on the request
// context and writes one access line per request. The query string is never
// logged.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	quiet := cfg.QuietRoutes
	if quiet == nil {
		quiet = []string{"/health", "/metrics"}
	}

	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		ctx = obscontext.WithClient(ctx, c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
			zap.String("client_ip", c.ClientIP()),
		}
		if method := c.GetString("auth_method"); method != "" {
			fields = append(fields, zap.String("auth_method", method))
		}

		var errorType string
		if last := c.Errors.Last(); last != nil {
			errorCode := ""
			if cfg.ErrorClassifier != nil {
				errorType, errorCode = cfg.ErrorClassifier(last.Err)
			}
			fields = append(fields, zap.String("error_type", errorType), zap.String("error_code", errorCode))
			if cfg.Debug {
				fields = append(fields, zap.Error(last.Err))
			}
		}

		level := requestLevel(route, status, quiet)
		// The actor is attached by the auth middleware after this one runs,
		// so it is read from the final request context.
		if ce := FromContext(c.Request.Context()).Check(level, "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

// requestIDFor reuses a caller supplied id when it is short printable ASCII
// and otherwise generates one.
func requestIDFor(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
	if !validRequestID(requestID) {
		requestID = uuid.NewString()
	}
	c.Set("request_id", requestID)
	c.Header(HeaderRequestID, requestID)
	return requestID
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// requestLevel logs server faults as errors and rejected credentials as
// warnings so credential stuffing stands out from normal traffic.
func requestLevel(route string, status int, quiet []string) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return zapcore.WarnLevel
	}
	for _, r := range quiet {
		if r == route {
			return zapcore.DebugLevel
		}
	}
	return zapcore.InfoLevel
}
