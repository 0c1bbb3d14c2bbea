package service

import (
	"context"
	"strings"

	apikeydomain "github.com/derrickmugabwa/kenya-food-database-api/internal/apikey/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/password"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/clock"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type VerifierParams struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Repo   apikeydomain.Repository
	Clock  clock.Clock
	Config config.Config
	Policy *config.AccessPolicyHolder
}

// Verifier proves possession of a plaintext API key.
type Verifier struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   apikeydomain.Repository
	clock  clock.Clock
	pepper []byte
	policy *config.AccessPolicyHolder
}

func NewVerifier(p VerifierParams) apikeydomain.Verifier {
	log := p.Log.Named("apikey.verifier")
	if strings.TrimSpace(p.Config.APIKey.Pepper) == "" {
		log.Warn("api key pepper is empty; fingerprints are unkeyed")
	}
	return &Verifier{
		db:     p.DB,
		log:    log,
		repo:   p.Repo,
		clock:  p.Clock,
		pepper: []byte(p.Config.APIKey.Pepper),
		policy: p.Policy,
	}
}

// Verify returns the usable key matching candidate, or ErrInvalidFormat /
// ErrNotFound. Rows are located by fingerprint; rows created before
// fingerprints existed are found by a bounded scan and backfilled.
func (v *Verifier) Verify(ctx context.Context, candidate string) (*apikeydomain.APIKey, error) {
	if !apikeydomain.ValidFormat(candidate) {
		return nil, apikeydomain.ErrInvalidFormat
	}

	fingerprint := apikeydomain.Fingerprint(v.pepper, candidate)
	key, err := v.matchFingerprint(ctx, fingerprint, candidate)
	if err != nil {
		return nil, err
	}
	if key == nil {
		key, err = v.matchLegacy(ctx, fingerprint, candidate)
		if err != nil {
			return nil, err
		}
	}
	if key == nil {
		return nil, apikeydomain.ErrNotFound
	}

	now := v.clock.Now()
	if !key.Usable(now) {
		return nil, apikeydomain.ErrNotFound
	}

	if err := v.repo.TouchLastUsed(ctx, v.db, key.ID, now); err != nil {
		v.log.Warn("failed to update api key last_used_at",
			zap.String("key_id", key.ID.String()),
			zap.Error(err),
		)
	} else {
		key.LastUsedAt = &now
	}
	return key, nil
}

func (v *Verifier) matchFingerprint(ctx context.Context, fingerprint, candidate string) (*apikeydomain.APIKey, error) {
	rows, err := v.repo.FindActiveByFingerprint(ctx, v.db, fingerprint)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if password.Verify(candidate, rows[i].KeyHash) {
			return &rows[i], nil
		}
	}
	return nil, nil
}

func (v *Verifier) matchLegacy(ctx context.Context, fingerprint, candidate string) (*apikeydomain.APIKey, error) {
	limit := v.policy.Get().KeyScanLimit
	if limit <= 0 {
		return nil, nil
	}
	rows, err := v.repo.ListActiveWithoutFingerprint(ctx, v.db, limit)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if !password.Verify(candidate, rows[i].KeyHash) {
			continue
		}
		key := &rows[i]
		if err := v.repo.SetFingerprint(ctx, v.db, key.ID, fingerprint); err != nil {
			v.log.Warn("failed to backfill api key fingerprint",
				zap.String("key_id", key.ID.String()),
				zap.Error(err),
			)
		} else {
			key.KeyFingerprint = &fingerprint
		}
		return key, nil
	}
	return nil, nil
}
