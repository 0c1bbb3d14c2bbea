package oauth2provider

import (
	"strings"
	"time"

	"github.com/derrickmugabwa/kenya-food-database-api/internal/config"
)

// Config holds client-credentials token settings.
type Config struct {
	Secret    string
	Issuer    string
	Audience  string
	AccessTTL time.Duration
}

func NewConfig(cfg config.Config) (Config, error) {
	secret := strings.TrimSpace(cfg.OAuth.JWTSecret)
	if secret == "" {
		return Config{}, ErrMissingSecret
	}
	ttl := cfg.OAuth.AccessTokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return Config{
		Secret:    secret,
		Issuer:    cfg.OAuth.Issuer,
		Audience:  cfg.OAuth.Audience,
		AccessTTL: ttl,
	}, nil
}
