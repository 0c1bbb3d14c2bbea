package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AccessPolicy holds the tunables of the credential layer that operators may
// change without a restart.
type AccessPolicy struct {
	// TierRateLimits maps an API tier to its default daily request allowance.
	TierRateLimits map[string]int `mapstructure:"tierRateLimits"`
	// KeyScanLimit bounds the fallback scan over API keys that predate fingerprints.
	KeyScanLimit int `mapstructure:"keyScanLimit"`
	// DefaultClientScopes are granted to OAuth clients created without scopes.
	DefaultClientScopes []string `mapstructure:"defaultClientScopes"`
}

func DefaultAccessPolicy() AccessPolicy {
	return AccessPolicy{
		TierRateLimits: map[string]int{
			"free":       1000,
			"basic":      5000,
			"premium":    10000,
			"enterprise": 100000,
		},
		KeyScanLimit:        1000,
		DefaultClientScopes: []string{"read:foods", "read:categories", "read:nutrients"},
	}
}

// RateLimitForTier returns the configured allowance, falling back to the free tier.
func (p AccessPolicy) RateLimitForTier(tier string) int {
	if limit, ok := p.TierRateLimits[strings.ToLower(strings.TrimSpace(tier))]; ok && limit > 0 {
		return limit
	}
	if limit, ok := p.TierRateLimits["free"]; ok && limit > 0 {
		return limit
	}
	return 1000
}

type AccessPolicyHolder struct {
	current atomic.Value // holds AccessPolicy
}

// NewStaticAccessPolicyHolder wraps a fixed policy.
func NewStaticAccessPolicyHolder(policy AccessPolicy) *AccessPolicyHolder {
	holder := &AccessPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewAccessPolicyHolder(log *zap.Logger) (*AccessPolicyHolder, error) {
	log = log.Named("config.access_policy")
	v := viper.New()

	v.SetConfigName("access-policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/kenya-food-db")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KFDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAccessPolicy()
	v.SetDefault("access.tierRateLimits", defaults.TierRateLimits)
	v.SetDefault("access.keyScanLimit", defaults.KeyScanLimit)
	v.SetDefault("access.defaultClientScopes", defaults.DefaultClientScopes)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	policy := DefaultAccessPolicy()
	if err := v.UnmarshalKey("access", &policy); err != nil {
		return nil, err
	}
	if err := validateAccessPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticAccessPolicyHolder(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := DefaultAccessPolicy()
		if err := v.UnmarshalKey("access", &updated); err != nil {
			log.Warn("access policy reload failed", zap.Error(err))
			return
		}
		if err := validateAccessPolicy(updated); err != nil {
			log.Warn("invalid access policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("access policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *AccessPolicyHolder) Get() AccessPolicy {
	return h.current.Load().(AccessPolicy)
}

func validateAccessPolicy(p AccessPolicy) error {
	if p.KeyScanLimit <= 0 {
		return errors.New("access.keyScanLimit must be positive")
	}
	if len(p.DefaultClientScopes) == 0 {
		return errors.New("access.defaultClientScopes cannot be empty")
	}
	for tier, limit := range p.TierRateLimits {
		if limit <= 0 {
			return fmt.Errorf("access.tierRateLimits.%s must be positive", tier)
		}
	}
	return nil
}
