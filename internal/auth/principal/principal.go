// Package principal describes the authenticated caller attached to a request.
//
// A Principal is exactly one of Session, OAuthClient or APIKey. Consumers
// switch on the concrete type instead of probing for fields.
package principal

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Type string

const (
	TypeSession     Type = "session"
	TypeOAuthClient Type = "oauth_client"
	TypeAPIKey      Type = "api_key"
)

func (t Type) Valid() bool {
	switch t {
	case TypeSession, TypeOAuthClient, TypeAPIKey:
		return true
	default:
		return false
	}
}

const RoleAdmin = "admin"

type Principal interface {
	Type() Type
	// Owner is the user the credential belongs to.
	Owner() snowflake.ID
	// Subject identifies the credential itself in logs.
	Subject() string

	isPrincipal()
}

// Session is a user signed in through email login.
type Session struct {
	UserID snowflake.ID
	Role   string
}

func (Session) Type() Type            { return TypeSession }
func (s Session) Owner() snowflake.ID { return s.UserID }
func (s Session) Subject() string     { return s.UserID.String() }
func (s Session) IsAdmin() bool       { return s.Role == RoleAdmin }
func (Session) isPrincipal()          {}

// OAuthClient is a machine caller holding a client-credentials token.
type OAuthClient struct {
	ClientID  string
	UserID    snowflake.ID
	Scopes    []string
	Tier      string
	RateLimit int
	TokenID   snowflake.ID
}

func (OAuthClient) Type() Type            { return TypeOAuthClient }
func (o OAuthClient) Owner() snowflake.ID { return o.UserID }
func (o OAuthClient) Subject() string     { return o.ClientID }
func (OAuthClient) isPrincipal()          {}

// APIKey is a caller presenting a static API key.
type APIKey struct {
	KeyID     snowflake.ID
	UserID    snowflake.ID
	KeyPrefix string
	Tier      string
	RateLimit int
}

func (APIKey) Type() Type            { return TypeAPIKey }
func (k APIKey) Owner() snowflake.ID { return k.UserID }
func (k APIKey) Subject() string     { return k.KeyID.String() }
func (APIKey) isPrincipal()          {}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok && p != nil
}

// SessionFromContext returns the session principal, if the request carries one.
func SessionFromContext(ctx context.Context) (Session, bool) {
	p, ok := FromContext(ctx)
	if !ok {
		return Session{}, false
	}
	s, ok := p.(Session)
	return s, ok
}

// Limit returns the daily request allowance carried by the principal. Sessions
// are not metered.
func Limit(p Principal) (int, bool) {
	switch v := p.(type) {
	case OAuthClient:
		return v.RateLimit, v.RateLimit > 0
	case APIKey:
		return v.RateLimit, v.RateLimit > 0
	default:
		return 0, false
	}
}
