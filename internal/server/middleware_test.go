package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/derrickmugabwa/kenya-food-database-api/internal/apikey/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/bearer"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/oauth2provider"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/scope"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/authorization"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/clock"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/ratelimit"
	usagedomain "github.com/derrickmugabwa/kenya-food-database-api/internal/usage/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSessions struct {
	sessions map[string]principal.Session
}

func (f *fakeSessions) Verify(raw string) (principal.Session, error) {
	if sess, ok := f.sessions[raw]; ok {
		return sess, nil
	}
	return principal.Session{}, errors.New("invalid session token")
}

type fakeOAuth struct {
	validate func(raw string, required []scope.Scope) (*principal.OAuthClient, error)
	calls    int
}

func (f *fakeOAuth) Validate(_ context.Context, raw string, required []scope.Scope) (*principal.OAuthClient, error) {
	f.calls++
	if f.validate == nil {
		return nil, oauth2provider.ErrInvalidToken
	}
	return f.validate(raw, required)
}

func (f *fakeOAuth) RevokeToken(context.Context, principal.Session, string) error { return nil }

func (f *fakeOAuth) CreateClient(context.Context, snowflake.ID, oauth2provider.CreateClientRequest) (*oauth2provider.CreateClientResult, error) {
	return nil, nil
}

func (f *fakeOAuth) ListClients(context.Context, *snowflake.ID, pagination.Pagination) (pagination.Page[oauth2provider.Client], error) {
	return pagination.Page[oauth2provider.Client]{}, nil
}

func (f *fakeOAuth) GetClient(context.Context, principal.Session, snowflake.ID) (*oauth2provider.Client, error) {
	return nil, oauth2provider.ErrClientNotFound
}

func (f *fakeOAuth) UpdateClient(context.Context, principal.Session, snowflake.ID, oauth2provider.UpdateClientRequest) (*oauth2provider.Client, error) {
	return nil, oauth2provider.ErrClientNotFound
}

func (f *fakeOAuth) DeleteClient(context.Context, principal.Session, snowflake.ID) error {
	return oauth2provider.ErrClientNotFound
}

type fakeVerifier struct {
	keys       map[string]*apikeydomain.APIKey
	candidates []string
}

func (f *fakeVerifier) Verify(_ context.Context, candidate string) (*apikeydomain.APIKey, error) {
	f.candidates = append(f.candidates, candidate)
	if key, ok := f.keys[candidate]; ok {
		return key, nil
	}
	return nil, apikeydomain.ErrNotFound
}

type fakeTracker struct {
	mu     sync.Mutex
	events []usagedomain.Event
}

func (f *fakeTracker) Track(_ context.Context, evt usagedomain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

func (f *fakeTracker) Events() []usagedomain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]usagedomain.Event(nil), f.events...)
}

type fakeBucket struct {
	result *ratelimit.Result
	err    error
	keys   []string
}

func (f *fakeBucket) Allow(_ context.Context, key string, _ float64, _ int) (*ratelimit.Result, error) {
	f.keys = append(f.keys, key)
	return f.result, f.err
}

type fakeAuthorizer struct {
	err   error
	calls []principal.Session
}

func (f *fakeAuthorizer) Authorize(_ context.Context, caller principal.Session, _ string, _ string) error {
	f.calls = append(f.calls, caller)
	return f.err
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testHarness struct {
	srv      *Server
	router   *gin.Engine
	sessions *fakeSessions
	oauth    *fakeOAuth
	verifier *fakeVerifier
	tracker  *fakeTracker
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &testHarness{
		sessions: &fakeSessions{sessions: map[string]principal.Session{}},
		oauth:    &fakeOAuth{},
		verifier: &fakeVerifier{keys: map[string]*apikeydomain.APIKey{}},
		tracker:  &fakeTracker{},
	}
	h.router = gin.New()
	h.router.Use(ErrorHandlingMiddleware())
	h.srv = &Server{
		engine:   h.router,
		log:      zap.NewNop(),
		clock:    clock.NewFakeClock(testNow),
		sessions: h.sessions,
		oauth:    h.oauth,
		oauthsvc: h.oauth,
		apiKeys:  h.verifier,
		tracker:  h.tracker,
	}

	h.router.GET("/v1/foods", h.srv.FlexibleAuth(scope.ReadFoods), h.srv.RateLimitByPrincipal(), func(c *gin.Context) {
		p, _ := principalFromContext(c)
		c.JSON(http.StatusOK, gin.H{"type": string(p.Type()), "subject": p.Subject()})
	})
	h.router.GET("/v1/auth/me", h.srv.SessionRequired(), func(c *gin.Context) {
		sess, _ := principal.SessionFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user": sess.UserID.String()})
	})
	return h
}

func (h *testHarness) do(headers map[string]string) *httptest.ResponseRecorder {
	return h.doPath("/v1/foods", headers)
}

func (h *testHarness) doPath(path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("User-Agent", "kfdb-test")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func signedToken(t *testing.T, tokenType, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"token_type": tokenType,
		"sub":        subject,
	})
	raw, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func activeKey(id int64) *apikeydomain.APIKey {
	return &apikeydomain.APIKey{
		ID:        snowflake.ID(id),
		UserID:    snowflake.ID(7),
		KeyPrefix: "kfdb_live_abcde...",
		Status:    apikeydomain.StatusActive,
		Tier:      apikeydomain.TierFree,
		RateLimit: 1000,
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestFlexibleAuthPrefersSessionOverAPIKey(t *testing.T) {
	h := newTestHarness(t)
	token := signedToken(t, bearer.TypeSession, "42")
	h.sessions.sessions[token] = principal.Session{UserID: snowflake.ID(42), Role: "user"}
	h.verifier.keys["kfdb_live_abcdefghij"] = activeKey(1)

	rec := h.do(map[string]string{
		"Authorization": "Bearer " + token,
		HeaderAPIKey:    "kfdb_live_abcdefghij",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "session", decodeBody(t, rec)["type"])
	assert.Empty(t, h.verifier.candidates)
	assert.Zero(t, h.oauth.calls)
}

func TestFlexibleAuthFallsThroughInvalidSessionToAPIKey(t *testing.T) {
	h := newTestHarness(t)
	token := signedToken(t, bearer.TypeSession, "42")
	h.verifier.keys["kfdb_live_abcdefghij"] = activeKey(1)

	rec := h.do(map[string]string{
		"Authorization": "Bearer " + token,
		HeaderAPIKey:    "kfdb_live_abcdefghij",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "api_key", decodeBody(t, rec)["type"])
}

func TestFlexibleAuthAcceptsOAuthClient(t *testing.T) {
	h := newTestHarness(t)
	token := signedToken(t, bearer.TypeOAuthClientCredentials, "client")
	h.oauth.validate = func(raw string, required []scope.Scope) (*principal.OAuthClient, error) {
		assert.Equal(t, token, raw)
		assert.Equal(t, []scope.Scope{scope.ReadFoods}, required)
		return &principal.OAuthClient{ClientID: "kfdb_client_1", UserID: snowflake.ID(7)}, nil
	}

	rec := h.do(map[string]string{"Authorization": "Bearer " + token})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "oauth_client", body["type"])
	assert.Equal(t, "kfdb_client_1", body["subject"])
}

func TestFlexibleAuthInsufficientScopeStopsChain(t *testing.T) {
	h := newTestHarness(t)
	token := signedToken(t, bearer.TypeOAuthClientCredentials, "client")
	h.oauth.validate = func(string, []scope.Scope) (*principal.OAuthClient, error) {
		return nil, &oauth2provider.InsufficientScopeError{Required: []scope.Scope{scope.ReadFoods}}
	}
	h.verifier.keys["kfdb_live_abcdefghij"] = activeKey(1)

	rec := h.do(map[string]string{
		"Authorization": "Bearer " + token,
		HeaderAPIKey:    "kfdb_live_abcdefghij",
	})

	require.Equal(t, http.StatusForbidden, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "insufficient_scope", payload.Type)
	assert.Contains(t, payload.Message, "read:foods")
	assert.Empty(t, h.verifier.candidates)
	assert.Empty(t, h.tracker.Events())
}

func TestFlexibleAuthInvalidOAuthTokenFallsThrough(t *testing.T) {
	h := newTestHarness(t)
	token := signedToken(t, bearer.TypeOAuthClientCredentials, "client")
	h.verifier.keys["kfdb_live_abcdefghij"] = activeKey(1)

	rec := h.do(map[string]string{
		"Authorization": "Bearer " + token,
		HeaderAPIKey:    "kfdb_live_abcdefghij",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.oauth.calls)
	assert.Equal(t, "api_key", decodeBody(t, rec)["type"])
}

func TestFlexibleAuthMissingCredentials(t *testing.T) {
	h := newTestHarness(t)

	rec := h.do(nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "unauthorized", payload.Type)
	assert.Equal(t, "Authentication required. Please provide a valid JWT token, OAuth token, or API key.", payload.Message)
	assert.Empty(t, h.tracker.Events())
}

func TestFlexibleAuthAPIKeyHeaderWinsOverAuthorization(t *testing.T) {
	h := newTestHarness(t)
	h.verifier.keys["kfdb_live_fromheader"] = activeKey(1)

	rec := h.do(map[string]string{
		"Authorization": "kfdb_live_fromauthz",
		HeaderAPIKey:    "kfdb_live_fromheader",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"kfdb_live_fromheader"}, h.verifier.candidates)
}

func TestFlexibleAuthRawAuthorizationIsAPIKey(t *testing.T) {
	h := newTestHarness(t)
	h.verifier.keys["kfdb_live_abcdefghij"] = activeKey(9)

	rec := h.do(map[string]string{"Authorization": "kfdb_live_abcdefghij"})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "api_key", body["type"])
	assert.Equal(t, snowflake.ID(9).String(), body["subject"])
}

func TestFlexibleAuthRejectsUnusableKeys(t *testing.T) {
	past := testNow.Add(-time.Hour)
	revoked := activeKey(1)
	revoked.Status = apikeydomain.StatusRevoked
	expired := activeKey(2)
	expired.ExpiresAt = &past

	for name, key := range map[string]*apikeydomain.APIKey{"revoked": revoked, "expired": expired} {
		t.Run(name, func(t *testing.T) {
			h := newTestHarness(t)
			h.verifier.keys["kfdb_live_abcdefghij"] = key

			rec := h.do(map[string]string{HeaderAPIKey: "kfdb_live_abcdefghij"})

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestFlexibleAuthTracksCompletedRequest(t *testing.T) {
	h := newTestHarness(t)
	h.verifier.keys["kfdb_live_abcdefghij"] = activeKey(1)

	rec := h.do(map[string]string{HeaderAPIKey: "kfdb_live_abcdefghij"})
	require.Equal(t, http.StatusOK, rec.Code)

	events := h.tracker.Events()
	require.Len(t, events, 1)
	evt := events[0]
	assert.Equal(t, "/v1/foods", evt.Endpoint)
	assert.Equal(t, http.MethodGet, evt.Method)
	assert.Equal(t, http.StatusOK, evt.StatusCode)
	assert.Equal(t, "kfdb-test", evt.UserAgent)
	assert.GreaterOrEqual(t, evt.ResponseTime, time.Duration(0))
	key, ok := evt.Principal.(principal.APIKey)
	require.True(t, ok)
	assert.Equal(t, snowflake.ID(1), key.KeyID)
}

func TestSessionRequiredRejectsMachineCredentials(t *testing.T) {
	h := newTestHarness(t)
	h.verifier.keys["kfdb_live_abcdefghij"] = activeKey(1)

	rec := h.doPath("/v1/auth/me", map[string]string{HeaderAPIKey: "kfdb_live_abcdefghij"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, h.verifier.candidates)

	token := signedToken(t, bearer.TypeSession, "42")
	h.sessions.sessions[token] = principal.Session{UserID: snowflake.ID(42)}
	rec = h.doPath("/v1/auth/me", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", decodeBody(t, rec)["user"])
}

func TestRateLimitByPrincipalDenies(t *testing.T) {
	h := newTestHarness(t)
	bucket := &fakeBucket{result: &ratelimit.Result{Allowed: false, Limit: 1000, Remaining: -1, RetryAfter: 1500 * time.Millisecond}}
	h.srv.limiter = ratelimit.NewPrincipalLimiterWithBucket(bucket, nil)
	h.verifier.keys["kfdb_live_abcdefghij"] = activeKey(1)

	rec := h.do(map[string]string{HeaderAPIKey: "kfdb_live_abcdefghij"})

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1000", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, []string{"kfdb:ratelimit:apikey:1"}, bucket.keys)

	events := h.tracker.Events()
	require.Len(t, events, 1)
	assert.Equal(t, http.StatusTooManyRequests, events[0].StatusCode)
}

func TestRateLimitByPrincipalAllows(t *testing.T) {
	h := newTestHarness(t)
	bucket := &fakeBucket{result: &ratelimit.Result{Allowed: true, Limit: 1000, Remaining: 999}}
	h.srv.limiter = ratelimit.NewPrincipalLimiterWithBucket(bucket, nil)
	h.verifier.keys["kfdb_live_abcdefghij"] = activeKey(1)

	rec := h.do(map[string]string{HeaderAPIKey: "kfdb_live_abcdefghij"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "999", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitByPrincipalSkipsSessions(t *testing.T) {
	h := newTestHarness(t)
	bucket := &fakeBucket{result: &ratelimit.Result{Allowed: false}}
	h.srv.limiter = ratelimit.NewPrincipalLimiterWithBucket(bucket, nil)
	token := signedToken(t, bearer.TypeSession, "42")
	h.sessions.sessions[token] = principal.Session{UserID: snowflake.ID(42)}

	rec := h.do(map[string]string{"Authorization": "Bearer " + token})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, bucket.keys)
}

func TestRateLimitByPrincipalBackendFailure(t *testing.T) {
	h := newTestHarness(t)
	h.srv.limiter = ratelimit.NewPrincipalLimiterWithBucket(&fakeBucket{err: errors.New("redis down")}, nil)
	h.verifier.keys["kfdb_live_abcdefghij"] = activeKey(1)

	rec := h.do(map[string]string{HeaderAPIKey: "kfdb_live_abcdefghij"})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(authz authorization.Service, p principal.Principal) *httptest.ResponseRecorder {
		srv := &Server{log: zap.NewNop()}
		if authz != nil {
			srv.authzSvc = authz
		}
		r := gin.New()
		r.Use(ErrorHandlingMiddleware())
		r.GET("/v1/usage-logs", func(c *gin.Context) {
			if p != nil {
				attachPrincipal(c, p)
			}
			c.Next()
		}, srv.RequireRole(authorization.ObjectUsageLog, authorization.ActionRead), func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/usage-logs", nil))
		return rec
	}

	t.Run("no principal", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, run(&fakeAuthorizer{}, nil).Code)
	})
	t.Run("no authorizer", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, run(nil, principal.Session{UserID: 1}).Code)
	})
	t.Run("denied", func(t *testing.T) {
		authz := &fakeAuthorizer{err: authorization.ErrForbidden}
		assert.Equal(t, http.StatusForbidden, run(authz, principal.Session{UserID: 1}).Code)
	})
	t.Run("machine caller acts as owner", func(t *testing.T) {
		authz := &fakeAuthorizer{}
		rec := run(authz, principal.APIKey{KeyID: 3, UserID: 7, RateLimit: 10})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.Len(t, authz.calls, 1)
		assert.Equal(t, principal.Session{UserID: 7}, authz.calls[0])
	})
}
