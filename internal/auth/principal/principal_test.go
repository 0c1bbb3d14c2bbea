package principal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithPrincipal(context.Background(), APIKey{KeyID: 7, UserID: 3, RateLimit: 1000})

	p, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, TypeAPIKey, p.Type())
	assert.Equal(t, "7", p.Subject())

	_, ok = SessionFromContext(ctx)
	assert.False(t, ok)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestLimit(t *testing.T) {
	limit, ok := Limit(OAuthClient{RateLimit: 500})
	assert.True(t, ok)
	assert.Equal(t, 500, limit)

	_, ok = Limit(Session{UserID: 1})
	assert.False(t, ok)
}

func TestSessionIsAdmin(t *testing.T) {
	assert.True(t, Session{Role: RoleAdmin}.IsAdmin())
	assert.False(t, Session{Role: "user"}.IsAdmin())
}

func TestTypeValid(t *testing.T) {
	assert.True(t, TypeOAuthClient.Valid())
	assert.False(t, Type("user").Valid())
}
