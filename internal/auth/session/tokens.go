package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/bearer"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/clock"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid session token")
	ErrMissingSecret = errors.New("session signing secret is not configured")
)

// Claims is the payload of a session token issued by email login.
type Claims struct {
	UserID    string `json:"id"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Manager issues and verifies session tokens.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
	parser *jwt.Parser
}

func NewManager(cfg config.Config, clk clock.Clock) (*Manager, error) {
	secret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	ttl := cfg.Auth.TokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Manager{
		secret: []byte(secret),
		issuer: cfg.OAuth.Issuer,
		ttl:    ttl,
		clock:  clk,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.OAuth.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clk.Now),
		),
	}, nil
}

// Issue signs a session token for the user.
func (m *Manager) Issue(userID snowflake.ID, role string) (string, time.Time, error) {
	now := m.clock.Now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		UserID:    userID.String(),
		Role:      role,
		TokenType: bearer.TypeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify accepts only tokens whose signed token_type is "session". Every
// failure collapses into ErrInvalidToken.
func (m *Manager) Verify(raw string) (principal.Session, error) {
	var claims Claims
	parsed, err := m.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return principal.Session{}, ErrInvalidToken
	}
	if claims.TokenType != bearer.TypeSession {
		return principal.Session{}, ErrInvalidToken
	}
	userID, err := snowflake.ParseString(claims.UserID)
	if err != nil || userID == 0 {
		return principal.Session{}, ErrInvalidToken
	}
	return principal.Session{UserID: userID, Role: claims.Role}, nil
}
