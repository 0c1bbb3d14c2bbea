package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/bearer"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/oauth2provider"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/scope"
	obscontext "github.com/derrickmugabwa/kenya-food-database-api/internal/observability/context"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/observability/logger"
	usagedomain "github.com/derrickmugabwa/kenya-food-database-api/internal/usage/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderAPIKey = "X-API-Key"

	contextAuthMethodKey = "auth_method"
)

const (
	authResultSuccess   = "success"
	authResultFailure   = "failure"
	authResultForbidden = "forbidden"
)

// FlexibleAuth accepts a session token, an OAuth client-credentials token or
// an API key, tried in that order. The first credential that verifies wins;
// an OAuth token lacking every required scope stops the chain with 403.
func (s *Server) FlexibleAuth(required ...scope.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()

		p, err := s.authenticate(ctx, c.Request.Header, required)
		if err != nil {
			s.obsMetrics.RecordAuthAttempt(ctx, string(principal.TypeOAuthClient), authResultForbidden)
			AbortWithError(c, err)
			return
		}
		if p == nil {
			s.obsMetrics.RecordAuthAttempt(ctx, "none", authResultFailure)
			AbortWithError(c, ErrAuthRequired)
			return
		}

		s.obsMetrics.RecordAuthAttempt(ctx, string(p.Type()), authResultSuccess)
		attachPrincipal(c, p)

		c.Next()

		if s.tracker == nil {
			return
		}
		s.tracker.Track(c.Request.Context(), usagedomain.Event{
			Principal:    p,
			Endpoint:     c.Request.URL.Path,
			Method:       c.Request.Method,
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			StatusCode:   responseStatus(c),
			ResponseTime: time.Since(start),
		})
	}
}

// SessionRequired admits only signed-in users. Credential management routes
// use it so a leaked API key cannot mint further credentials.
func (s *Server) SessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer.FromHeader(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		sess, err := s.sessions.Verify(raw)
		if err != nil {
			s.obsMetrics.RecordAuthAttempt(c.Request.Context(), string(principal.TypeSession), authResultFailure)
			AbortWithError(c, ErrUnauthorized)
			return
		}
		attachPrincipal(c, sess)
		c.Next()
	}
}

func (s *Server) authenticate(ctx context.Context, header http.Header, required []scope.Scope) (principal.Principal, error) {
	authorization := strings.TrimSpace(header.Get("Authorization"))

	if raw, ok := bearer.FromHeader(authorization); ok {
		switch bearer.PeekType(raw) {
		case bearer.TypeSession:
			sess, err := s.sessions.Verify(raw)
			if err == nil {
				return sess, nil
			}
			s.obsMetrics.RecordAuthAttempt(ctx, string(principal.TypeSession), authResultFailure)
		case bearer.TypeOAuthClientCredentials:
			client, err := s.oauth.Validate(ctx, raw, required)
			switch {
			case err == nil:
				return *client, nil
			case errors.Is(err, oauth2provider.ErrInsufficientScope):
				return nil, err
			case errors.Is(err, oauth2provider.ErrInvalidToken):
				s.obsMetrics.RecordAuthAttempt(ctx, string(principal.TypeOAuthClient), authResultFailure)
			default:
				logger.WithContext(ctx, s.log).Warn("oauth token validation failed", zap.Error(err))
			}
		}
	}

	candidate := apiKeyCandidate(header.Get(HeaderAPIKey), authorization)
	if candidate == "" {
		return nil, nil
	}
	key, err := s.apiKeys.Verify(ctx, candidate)
	if err != nil || !key.Usable(s.clock.Now()) {
		s.obsMetrics.RecordAuthAttempt(ctx, string(principal.TypeAPIKey), authResultFailure)
		return nil, nil
	}
	return principal.APIKey{
		KeyID:     key.ID,
		UserID:    key.UserID,
		KeyPrefix: key.KeyPrefix,
		Tier:      key.Tier,
		RateLimit: key.RateLimit,
	}, nil
}

// apiKeyCandidate prefers the dedicated header; otherwise a non-Bearer
// Authorization value is treated as a raw key.
func apiKeyCandidate(apiKeyHeader, authorization string) string {
	if v := strings.TrimSpace(apiKeyHeader); v != "" {
		return v
	}
	if authorization == "" || bearer.IsBearer(authorization) {
		return ""
	}
	return authorization
}

// responseStatus is the status the client will see. Errors raised downstream
// are only rendered once ErrorHandlingMiddleware unwinds.
func responseStatus(c *gin.Context) int {
	if !c.Writer.Written() {
		if lastErr := c.Errors.Last(); lastErr != nil {
			status, _ := mapError(lastErr.Err)
			return status
		}
	}
	return c.Writer.Status()
}

func attachPrincipal(c *gin.Context, p principal.Principal) {
	ctx := principal.WithPrincipal(c.Request.Context(), p)
	ctx = obscontext.WithActor(ctx, string(p.Type()), p.Subject())
	c.Request = c.Request.WithContext(ctx)
	c.Set(contextAuthMethodKey, string(p.Type()))
}

func principalFromContext(c *gin.Context) (principal.Principal, bool) {
	return principal.FromContext(c.Request.Context())
}

// callerSession is the session used for ownership checks. Machine callers act
// as their owning user, never with admin rights.
func callerSession(c *gin.Context) (principal.Session, bool) {
	p, ok := principalFromContext(c)
	if !ok {
		return principal.Session{}, false
	}
	if sess, ok := p.(principal.Session); ok {
		return sess, true
	}
	return principal.Session{UserID: p.Owner()}, true
}
