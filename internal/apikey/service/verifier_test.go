package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/derrickmugabwa/kenya-food-database-api/internal/apikey/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/password"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/clock"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/config"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// -- Mocks --

type repoMock struct {
	mock.Mock
}

func (m *repoMock) Insert(ctx context.Context, db *gorm.DB, key *apikeydomain.APIKey) error {
	return m.Called(ctx, db, key).Error(0)
}
func (m *repoMock) Update(ctx context.Context, db *gorm.DB, key *apikeydomain.APIKey) error {
	return m.Called(ctx, db, key).Error(0)
}
func (m *repoMock) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*apikeydomain.APIKey, error) {
	args := m.Called(ctx, db, id)
	return nil, args.Error(1)
}
func (m *repoMock) List(ctx context.Context, db *gorm.DB, userID *snowflake.ID, page pagination.Pagination) ([]apikeydomain.APIKey, error) {
	args := m.Called(ctx, db, userID, page)
	return nil, args.Error(1)
}
func (m *repoMock) FindActiveByFingerprint(ctx context.Context, db *gorm.DB, fingerprint string) ([]apikeydomain.APIKey, error) {
	args := m.Called(ctx, db, fingerprint)
	return nil, args.Error(1)
}
func (m *repoMock) ListActiveWithoutFingerprint(ctx context.Context, db *gorm.DB, limit int) ([]apikeydomain.APIKey, error) {
	args := m.Called(ctx, db, limit)
	return nil, args.Error(1)
}
func (m *repoMock) SetFingerprint(ctx context.Context, db *gorm.DB, id snowflake.ID, fingerprint string) error {
	return m.Called(ctx, db, id, fingerprint).Error(0)
}
func (m *repoMock) TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return m.Called(ctx, db, id, at).Error(0)
}
func (m *repoMock) SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return m.Called(ctx, db, id, at).Error(0)
}
func (m *repoMock) ExpireStale(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	args := m.Called(ctx, db, now)
	return 0, args.Error(1)
}

// -- Tests --

func TestVerifyRejectsMalformedWithoutStoreAccess(t *testing.T) {
	repo := &repoMock{}
	v := NewVerifier(VerifierParams{
		Log:    zap.NewNop(),
		Repo:   repo,
		Clock:  clock.New(),
		Config: config.Config{APIKey: config.APIKeyConfig{Pepper: "p"}},
		Policy: config.NewStaticAccessPolicyHolder(config.DefaultAccessPolicy()),
	})

	for _, candidate := range []string{
		"",
		"kfdb_live_",
		"kfdb_live_short",
		"kfdb_test_abcdefghij",
		"kfdb_live_abc-defghij",
		"Bearer kfdb_live_abcdefghij",
	} {
		_, err := v.Verify(context.Background(), candidate)
		assert.ErrorIs(t, err, apikeydomain.ErrInvalidFormat, candidate)
	}
	repo.AssertNotCalled(t, "FindActiveByFingerprint", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "ListActiveWithoutFingerprint", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyMatchesAndTouchesLastUsed(t *testing.T) {
	env := newTestEnv(t, config.DefaultAccessPolicy())
	caller := principal.Session{UserID: env.node.Generate()}

	created, err := env.svc.Create(context.Background(), caller, apikeydomain.CreateRequest{Name: "k"})
	require.NoError(t, err)

	key, err := env.verifier.Verify(context.Background(), created.Key)
	require.NoError(t, err)
	assert.Equal(t, created.ID, key.ID)
	require.NotNil(t, key.LastUsedAt)

	stored, err := env.repo.FindByID(context.Background(), env.db, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastUsedAt)
	assert.True(t, stored.LastUsedAt.Equal(env.clock.Now()))

	first := *stored.LastUsedAt
	env.clock.Advance(time.Minute)
	again, err := env.verifier.Verify(context.Background(), created.Key)
	require.NoError(t, err)
	assert.Equal(t, key.ID, again.ID)
	assert.Equal(t, key.KeyHash, again.KeyHash)
	require.NotNil(t, again.LastUsedAt)
	assert.True(t, again.LastUsedAt.After(first))

	// The format check is case-insensitive, the hash comparison is not.
	_, err = env.verifier.Verify(context.Background(), strings.ToUpper(created.Key))
	assert.ErrorIs(t, err, apikeydomain.ErrNotFound)
}

func TestVerifyRejectsSingleCharacterMutation(t *testing.T) {
	env := newTestEnv(t, config.DefaultAccessPolicy())
	caller := principal.Session{UserID: env.node.Generate()}

	created, err := env.svc.Create(context.Background(), caller, apikeydomain.CreateRequest{Name: "k"})
	require.NoError(t, err)

	last := created.Key[len(created.Key)-1]
	replacement := byte('0')
	if last == '0' {
		replacement = '1'
	}
	mutated := created.Key[:len(created.Key)-1] + string(replacement)

	_, err = env.verifier.Verify(context.Background(), mutated)
	assert.ErrorIs(t, err, apikeydomain.ErrNotFound)
}

func TestVerifyRejectsExpiredKey(t *testing.T) {
	env := newTestEnv(t, config.DefaultAccessPolicy())
	caller := principal.Session{UserID: env.node.Generate()}

	expires := env.clock.Now().Add(time.Minute)
	created, err := env.svc.Create(context.Background(), caller, apikeydomain.CreateRequest{Name: "k", ExpiresAt: &expires})
	require.NoError(t, err)

	_, err = env.verifier.Verify(context.Background(), created.Key)
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	_, err = env.verifier.Verify(context.Background(), created.Key)
	assert.ErrorIs(t, err, apikeydomain.ErrNotFound)
}

func insertLegacyKey(t *testing.T, env *testEnv, plain string, createdAt time.Time) snowflake.ID {
	t.Helper()
	hash, err := password.Hash(plain)
	require.NoError(t, err)
	key := &apikeydomain.APIKey{
		ID:        env.node.Generate(),
		UserID:    env.node.Generate(),
		Name:      "legacy",
		KeyHash:   hash,
		KeyPrefix: apikeydomain.DisplayPrefix(plain),
		Status:    apikeydomain.StatusActive,
		Tier:      apikeydomain.TierFree,
		RateLimit: 1000,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, env.repo.Insert(context.Background(), env.db, key))
	return key.ID
}

func TestVerifyBackfillsLegacyFingerprint(t *testing.T) {
	env := newTestEnv(t, config.DefaultAccessPolicy())
	plain := "kfdb_live_legacyabc123xyz"
	id := insertLegacyKey(t, env, plain, env.clock.Now().Add(-time.Hour))

	key, err := env.verifier.Verify(context.Background(), plain)
	require.NoError(t, err)
	assert.Equal(t, id, key.ID)

	stored, err := env.repo.FindByID(context.Background(), env.db, id)
	require.NoError(t, err)
	require.NotNil(t, stored.KeyFingerprint)
	assert.Equal(t, apikeydomain.Fingerprint([]byte("test-pepper"), plain), *stored.KeyFingerprint)

	rows, err := env.repo.FindActiveByFingerprint(context.Background(), env.db, *stored.KeyFingerprint)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestVerifyLegacyScanIsBounded(t *testing.T) {
	policy := config.DefaultAccessPolicy()
	policy.KeyScanLimit = 1
	env := newTestEnv(t, policy)

	older := "kfdb_live_olderlegacy001"
	newer := "kfdb_live_newerlegacy002"
	insertLegacyKey(t, env, older, env.clock.Now().Add(-2*time.Hour))
	insertLegacyKey(t, env, newer, env.clock.Now().Add(-time.Hour))

	_, err := env.verifier.Verify(context.Background(), newer)
	assert.ErrorIs(t, err, apikeydomain.ErrNotFound, "rows beyond the scan limit are not examined")

	_, err = env.verifier.Verify(context.Background(), older)
	require.NoError(t, err)

	// Once the older row is backfilled it leaves the scan window.
	_, err = env.verifier.Verify(context.Background(), newer)
	assert.NoError(t, err)
}
