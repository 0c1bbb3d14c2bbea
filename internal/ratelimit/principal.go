package ratelimit

import (
	"context"
	"fmt"

	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/config"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/observability/metrics"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const (
	keyOAuthClient = "kfdb:ratelimit:oauth:%s"
	keyAPIKey      = "kfdb:ratelimit:apikey:%s"

	secondsPerDay = 86400
)

// PrincipalLimiter enforces the daily allowance carried by OAuth clients and
// API keys. Sessions are never limited.
type PrincipalLimiter struct {
	bucket  Bucket
	metrics *metrics.Metrics
}

type PrincipalLimiterParams struct {
	fx.In

	Config  config.Config
	Client  *redis.Client    `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

// NewPrincipalLimiter returns nil when limiting is disabled or Redis is absent.
func NewPrincipalLimiter(p PrincipalLimiterParams) *PrincipalLimiter {
	if !p.Config.RateLimit.Enabled || p.Client == nil {
		return nil
	}
	return NewPrincipalLimiterWithBucket(NewTokenBucket(p.Client), p.Metrics)
}

func NewPrincipalLimiterWithBucket(bucket Bucket, m *metrics.Metrics) *PrincipalLimiter {
	return &PrincipalLimiter{bucket: bucket, metrics: m}
}

func (l *PrincipalLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow consumes one request from the principal's bucket. A nil result means
// the principal is not metered.
func (l *PrincipalLimiter) Allow(ctx context.Context, p principal.Principal, endpoint string) (*Result, error) {
	if !l.Enabled() || p == nil {
		return nil, nil
	}
	limit, ok := principal.Limit(p)
	if !ok {
		return nil, nil
	}
	key, ok := bucketKey(p)
	if !ok {
		return nil, nil
	}

	res, err := l.bucket.Allow(ctx, key, float64(limit)/secondsPerDay, limit)
	if err != nil {
		return nil, err
	}
	if res.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, string(p.Type()), endpoint)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, string(p.Type()), endpoint, "daily_limit")
	}
	return res, nil
}

func bucketKey(p principal.Principal) (string, bool) {
	switch v := p.(type) {
	case principal.OAuthClient:
		return fmt.Sprintf(keyOAuthClient, v.ClientID), true
	case principal.APIKey:
		return fmt.Sprintf(keyAPIKey, v.KeyID.String()), true
	default:
		return "", false
	}
}
