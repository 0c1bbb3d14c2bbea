// Package bearer extracts bearer tokens and reads their signed token_type
// discriminant.
package bearer

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Token families minted by this service. Both are HS256 JWTs.
const (
	TypeSession                = "session"
	TypeOAuthClientCredentials = "oauth_client_credentials"
)

const prefix = "Bearer "

// FromHeader returns the token of an "Authorization: Bearer <token>" header.
func FromHeader(authorization string) (string, bool) {
	if len(authorization) < len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(authorization[len(prefix):])
	return token, token != ""
}

// IsBearer reports whether the Authorization value uses the Bearer scheme.
func IsBearer(authorization string) bool {
	return len(authorization) >= len(prefix) && strings.EqualFold(authorization[:len(prefix)], prefix)
}

// PeekType reads the token_type claim without verifying the signature. The
// result only selects which verifier runs; each verifier re-checks the claim
// after validating the signature.
func PeekType(raw string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return ""
	}
	v, _ := claims["token_type"].(string)
	return v
}
