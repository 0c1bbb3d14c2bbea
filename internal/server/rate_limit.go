package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/derrickmugabwa/kenya-food-database-api/internal/observability/logger"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitByPrincipal spends one unit of the caller's daily allowance. It
// must run after FlexibleAuth; sessions are not metered.
func (s *Server) RateLimitByPrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}
		p, ok := principalFromContext(c)
		if !ok {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		res, err := s.limiter.Allow(ctx, p, endpoint)
		if err != nil {
			logger.WithContext(ctx, s.log).Warn("rate limit check failed",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if res == nil {
			c.Next()
			return
		}

		setRateLimitHeaders(c, res)
		if !res.Allowed {
			logger.WithContext(ctx, s.log).Warn("rate limit exceeded",
				zap.String("principal_type", string(p.Type())),
				zap.String("endpoint", endpoint),
			)
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(res)))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, res *ratelimit.Result) {
	remaining := res.Remaining
	if remaining < 0 {
		remaining = 0
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
}

func retryAfterSeconds(res *ratelimit.Result) int {
	secs := int(math.Ceil(res.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
