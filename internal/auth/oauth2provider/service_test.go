package oauth2provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/derrickmugabwa/kenya-food-database-api/internal/auth/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	authrepo "github.com/derrickmugabwa/kenya-food-database-api/internal/auth/repository"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/scope"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/clock"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/config"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type staticTokenGen struct {
	values []string
	idx    int
}

func (g *staticTokenGen) NewToken() (string, error) {
	if g.idx >= len(g.values) {
		return "token", nil
	}
	val := g.values[g.idx]
	g.idx++
	return val, nil
}

type testEnv struct {
	svc   *Service
	store Store
	db    *gorm.DB
	clock *clock.FakeClock
	users authdomain.Repository
	node  *snowflake.Node
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&authdomain.User{}, &Client{}, &Token{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewStore(dbConn)
	users := authrepo.New(dbConn)
	cfg := Config{
		Secret:    "test-oauth-secret",
		Issuer:    "kenya-food-db",
		Audience:  "api",
		AccessTTL: time.Hour,
	}

	svc := &Service{
		cfg:      cfg,
		store:    store,
		users:    users,
		genID:    node,
		clock:    clk,
		tokenGen: &staticTokenGen{values: []string{"client-secret-1", "client-secret-2"}},
		policy:   config.NewStaticAccessPolicyHolder(config.DefaultAccessPolicy()),
		parser:   newParser(cfg, clk),
		log:      zap.NewNop(),
	}
	return &testEnv{svc: svc, store: store, db: dbConn, clock: clk, users: users, node: node}
}

func (e *testEnv) createUser(t *testing.T, tier string, limit int) snowflake.ID {
	t.Helper()
	user := &authdomain.User{
		ID:           e.node.Generate(),
		Email:        e.node.Generate().String() + "@example.com",
		PasswordHash: "x",
		Role:         authdomain.RoleUser,
		APITier:      tier,
		APIRateLimit: limit,
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user.ID
}

func (e *testEnv) createClient(t *testing.T, userID snowflake.ID, scopes []string) *CreateClientResult {
	t.Helper()
	res, err := e.svc.CreateClient(context.Background(), userID, CreateClientRequest{Name: "integration", Scopes: scopes})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return res
}

func (e *testEnv) tokenCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := e.db.Model(&Token{}).Count(&count).Error; err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	return count
}

func TestCreateClientInheritsUserAccess(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t, authdomain.TierPremium, 5000)

	res := env.createClient(t, userID, nil)
	if res.ClientSecret != "client-secret-1" {
		t.Fatalf("expected generated secret, got %q", res.ClientSecret)
	}
	if res.Client.ClientSecretHash == res.ClientSecret {
		t.Fatal("client secret stored in plaintext")
	}
	if len(res.Client.ClientID) <= len(clientIDPrefix) || res.Client.ClientID[:len(clientIDPrefix)] != clientIDPrefix {
		t.Fatalf("unexpected client id %q", res.Client.ClientID)
	}
	if res.Client.Tier != authdomain.TierPremium || res.Client.RateLimit != 5000 {
		t.Fatalf("expected premium/5000, got %s/%d", res.Client.Tier, res.Client.RateLimit)
	}
	want := []string{"read:foods", "read:categories", "read:nutrients"}
	if len(res.Client.Scopes) != len(want) {
		t.Fatalf("expected default scopes %v, got %v", want, res.Client.Scopes)
	}
	for i := range want {
		if res.Client.Scopes[i] != want[i] {
			t.Fatalf("expected default scopes %v, got %v", want, res.Client.Scopes)
		}
	}
}

func TestCreateClientRejectsUnknownScope(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t, authdomain.TierFree, 1000)

	_, err := env.svc.CreateClient(context.Background(), userID, CreateClientRequest{
		Name:   "bad",
		Scopes: []string{"read:foods", "delete:everything"},
	})
	if err != ErrInvalidScope {
		t.Fatalf("expected ErrInvalidScope, got %v", err)
	}
}

func TestIssueTokenSuccess(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t, authdomain.TierBasic, 2500)
	client := env.createClient(t, userID, []string{"read:foods"})

	resp, err := env.svc.IssueToken(context.Background(), TokenRequest{
		GrantType:    GrantTypeClientCredentials,
		ClientID:     client.Client.ClientID,
		ClientSecret: client.ClientSecret,
	})
	if err != nil {
		t.Fatalf("expected success, got err: %v", err)
	}
	if resp.TokenType != "Bearer" || resp.ExpiresIn != 3600 || resp.Scope != "read:foods" {
		t.Fatalf("unexpected response %+v", resp)
	}

	stored, err := env.store.GetToken(context.Background(), resp.AccessToken)
	if err != nil {
		t.Fatalf("expected stored token: %v", err)
	}
	if stored.Revoked {
		t.Fatal("new token must not be revoked")
	}
	if !stored.ExpiresAt.Equal(env.clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", stored.ExpiresAt)
	}

	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(resp.AccessToken, &claims); err != nil {
		t.Fatalf("parse claims: %v", err)
	}
	if claims.Subject != client.Client.ClientID || claims.ClientID != client.Client.ClientID {
		t.Fatalf("unexpected subject claims %+v", claims)
	}
	if claims.UserID != userID.String() || claims.Tier != authdomain.TierBasic || claims.RateLimit != 2500 {
		t.Fatalf("unexpected owner claims %+v", claims)
	}
	if claims.TokenType != "oauth_client_credentials" || claims.Issuer != "kenya-food-db" {
		t.Fatalf("unexpected token type/issuer %+v", claims)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "api" || claims.ID == "" {
		t.Fatalf("unexpected audience/jti %+v", claims)
	}
}

func TestIssueTokenRejectsBadClients(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t, authdomain.TierFree, 1000)
	client := env.createClient(t, userID, nil)

	cases := []struct {
		name string
		req  TokenRequest
		want error
	}{
		{
			name: "wrong_secret",
			req:  TokenRequest{GrantType: GrantTypeClientCredentials, ClientID: client.Client.ClientID, ClientSecret: "nope"},
			want: ErrInvalidClient,
		},
		{
			name: "unknown_client",
			req:  TokenRequest{GrantType: GrantTypeClientCredentials, ClientID: "kfdb_client_missing", ClientSecret: client.ClientSecret},
			want: ErrInvalidClient,
		},
		{
			name: "unsupported_grant",
			req:  TokenRequest{GrantType: "password", ClientID: client.Client.ClientID, ClientSecret: client.ClientSecret},
			want: ErrUnsupportedGrantType,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.IssueToken(context.Background(), tc.req)
			if err != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	var issued int64
	if err := env.db.Model(&Token{}).Count(&issued).Error; err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if issued != 0 {
		t.Fatalf("expected no persisted tokens, got %d", issued)
	}

	if got := env.tokenCount(t); got != 0 {
		t.Fatalf("expected no persisted tokens, got %d", got)
	}
}

func TestIssueTokenRejectsRevokedAndExpiredClients(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t, authdomain.TierFree, 1000)
	revoked := env.createClient(t, userID, nil)
	expiring := env.createClient(t, userID, nil)

	if err := env.store.UpdateClient(context.Background(), revoked.Client.ID, map[string]any{"status": StatusRevoked}); err != nil {
		t.Fatalf("revoke client: %v", err)
	}
	past := env.clock.Now().Add(-time.Minute)
	if err := env.store.UpdateClient(context.Background(), expiring.Client.ID, map[string]any{"expires_at": past}); err != nil {
		t.Fatalf("expire client: %v", err)
	}

	for _, c := range []*CreateClientResult{revoked, expiring} {
		_, err := env.svc.IssueToken(context.Background(), TokenRequest{
			GrantType:    GrantTypeClientCredentials,
			ClientID:     c.Client.ClientID,
			ClientSecret: c.ClientSecret,
		})
		if err != ErrInvalidClient {
			t.Fatalf("expected ErrInvalidClient for %s, got %v", c.Client.ClientID, err)
		}
	}
}

func issue(t *testing.T, env *testEnv, c *CreateClientResult) string {
	t.Helper()
	resp, err := env.svc.IssueToken(context.Background(), TokenRequest{
		GrantType:    GrantTypeClientCredentials,
		ClientID:     c.Client.ClientID,
		ClientSecret: c.ClientSecret,
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return resp.AccessToken
}

func TestValidate(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t, authdomain.TierFree, 1000)
	client := env.createClient(t, userID, []string{"read:foods", "read:categories"})
	token := issue(t, env, client)

	got, err := env.svc.Validate(context.Background(), token, []scope.Scope{scope.ReadFoods})
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if got.ClientID != client.Client.ClientID || got.UserID != userID || got.RateLimit != 1000 {
		t.Fatalf("unexpected principal %+v", got)
	}

	_, err = env.svc.Validate(context.Background(), token, []scope.Scope{scope.WriteFoods, scope.Admin})
	if !errors.Is(err, ErrInsufficientScope) {
		t.Fatalf("expected ErrInsufficientScope, got %v", err)
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Fatal("insufficient scope must be distinct from invalid token")
	}
	if err.Error() != "Insufficient scope. Required: write:foods or admin" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	if _, err := env.svc.Validate(context.Background(), token, nil); err != nil {
		t.Fatalf("empty requirement should pass, got %v", err)
	}
	if _, err := env.svc.Validate(context.Background(), token+"x", nil); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestValidateRejectsRevokedExpiredAndForeignTokens(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t, authdomain.TierFree, 1000)
	client := env.createClient(t, userID, nil)

	revoked := issue(t, env, client)
	if err := env.svc.RevokeToken(context.Background(), principal.Session{UserID: userID}, revoked); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := env.svc.Validate(context.Background(), revoked, nil); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for revoked token, got %v", err)
	}

	expiring := issue(t, env, client)
	env.clock.Advance(time.Hour + time.Second)
	if _, err := env.svc.Validate(context.Background(), expiring, nil); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	now := env.clock.Now()
	sessionLike := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		ClientID:  client.Client.ClientID,
		TokenType: "session",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "kenya-food-db",
			Audience:  jwt.ClaimStrings{"api"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	raw, err := sessionLike.SignedString([]byte("test-oauth-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := env.svc.Validate(context.Background(), raw, nil); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for wrong token type, got %v", err)
	}

	unpersisted := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		ClientID:  client.Client.ClientID,
		UserID:    userID.String(),
		TokenType: "oauth_client_credentials",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "kenya-food-db",
			Audience:  jwt.ClaimStrings{"api"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	raw, err = unpersisted.SignedString([]byte("test-oauth-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := env.svc.Validate(context.Background(), raw, nil); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for unpersisted token, got %v", err)
	}
}

func TestTokenScopesFrozenAtIssuance(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t, authdomain.TierFree, 1000)
	client := env.createClient(t, userID, []string{"read:foods"})
	caller := principal.Session{UserID: userID}

	before := issue(t, env, client)

	if _, err := env.svc.UpdateClient(context.Background(), caller, client.Client.ID, UpdateClientRequest{
		Scopes: []string{"read:nutrients"},
	}); err != nil {
		t.Fatalf("update client: %v", err)
	}
	after := issue(t, env, client)

	if _, err := env.svc.Validate(context.Background(), before, []scope.Scope{scope.ReadFoods}); err != nil {
		t.Fatalf("old token should keep read:foods, got %v", err)
	}
	if _, err := env.svc.Validate(context.Background(), after, []scope.Scope{scope.ReadFoods}); !errors.Is(err, ErrInsufficientScope) {
		t.Fatalf("new token should lack read:foods, got %v", err)
	}
	if _, err := env.svc.Validate(context.Background(), after, []scope.Scope{scope.ReadNutrients}); err != nil {
		t.Fatalf("new token should carry read:nutrients, got %v", err)
	}
}

func TestRevokeTokenRequiresOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, authdomain.TierFree, 1000)
	other := env.createUser(t, authdomain.TierFree, 1000)
	client := env.createClient(t, owner, nil)
	token := issue(t, env, client)

	if err := env.svc.RevokeToken(context.Background(), principal.Session{UserID: other}, token); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := env.svc.RevokeToken(context.Background(), principal.Session{UserID: other, Role: principal.RoleAdmin}, token); err != nil {
		t.Fatalf("admin revoke: %v", err)
	}
	if err := env.svc.RevokeToken(context.Background(), principal.Session{UserID: owner}, "unknown"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestDeleteExpiredTokens(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t, authdomain.TierFree, 1000)
	client := env.createClient(t, userID, nil)

	issue(t, env, client)
	env.clock.Advance(2 * time.Hour)
	live := issue(t, env, client)

	purged, err := env.svc.DeleteExpiredTokens(context.Background(), env.clock.Now())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged token, got %d", purged)
	}
	if _, err := env.svc.Validate(context.Background(), live, nil); err != nil {
		t.Fatalf("live token should survive purge, got %v", err)
	}
}

func TestDeleteClientRevokesOutstandingTokens(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, authdomain.TierFree, 1000)
	client := env.createClient(t, owner, nil)
	token := issue(t, env, client)

	if _, err := env.svc.Validate(context.Background(), token, nil); err != nil {
		t.Fatalf("expected valid token before delete, got %v", err)
	}
	if err := env.svc.DeleteClient(context.Background(), principal.Session{UserID: owner}, client.Client.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := env.svc.Validate(context.Background(), token, nil); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken after client delete, got %v", err)
	}
	stored, err := env.store.GetToken(context.Background(), token)
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if !stored.Revoked {
		t.Fatal("token row must be marked revoked")
	}
}

func TestClientOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, authdomain.TierFree, 1000)
	other := env.createUser(t, authdomain.TierFree, 1000)
	client := env.createClient(t, owner, nil)

	if _, err := env.svc.GetClient(context.Background(), principal.Session{UserID: other}, client.Client.ID); err != ErrClientNotFound {
		t.Fatalf("expected ErrClientNotFound for foreign client, got %v", err)
	}
	if err := env.svc.DeleteClient(context.Background(), principal.Session{UserID: other}, client.Client.ID); err != ErrClientNotFound {
		t.Fatalf("expected ErrClientNotFound on foreign delete, got %v", err)
	}
	if err := env.svc.DeleteClient(context.Background(), principal.Session{UserID: owner}, client.Client.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	page, err := env.svc.ListClients(context.Background(), &owner, pagination.Pagination{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Data) != 0 || page.HasNextPage {
		t.Fatalf("expected empty page after delete, got %+v", page)
	}
	if _, err := env.svc.IssueToken(context.Background(), TokenRequest{
		GrantType:    GrantTypeClientCredentials,
		ClientID:     client.Client.ClientID,
		ClientSecret: client.ClientSecret,
	}); err != ErrInvalidClient {
		t.Fatalf("deleted client must not obtain tokens, got %v", err)
	}
}
