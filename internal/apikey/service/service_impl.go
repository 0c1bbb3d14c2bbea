package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/derrickmugabwa/kenya-food-database-api/internal/apikey/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/password"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/clock"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/config"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	apiKeySecretBytes         = 16
	apiKeyRotationGracePeriod = 24 * time.Hour
	maxNameLength             = 100
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   apikeydomain.Repository
	Clock  clock.Clock
	Config config.Config
	Policy *config.AccessPolicyHolder
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   apikeydomain.Repository
	genID  *snowflake.Node
	clock  clock.Clock
	pepper []byte
	policy *config.AccessPolicyHolder
}

func New(p Params) apikeydomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("apikey.service"),
		repo:   p.Repo,
		genID:  p.GenID,
		clock:  p.Clock,
		pepper: []byte(p.Config.APIKey.Pepper),
		policy: p.Policy,
	}
}

// List returns the caller's keys. Admins may list every key with All.
func (s *Service) List(ctx context.Context, caller principal.Session, req apikeydomain.ListRequest) (pagination.Page[apikeydomain.Response], error) {
	var owner *snowflake.ID
	if !(req.All && caller.IsAdmin()) {
		owner = &caller.UserID
	}

	items, err := s.repo.List(ctx, s.db, owner, req.Pagination)
	if err != nil {
		return pagination.Page[apikeydomain.Response]{}, err
	}

	resp := make([]apikeydomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return pagination.BuildPage(resp, req.Pagination), nil
}

func (s *Service) Get(ctx context.Context, caller principal.Session, id snowflake.ID) (*apikeydomain.Response, error) {
	key, err := s.findOwned(ctx, s.db, caller, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(key)
	return &resp, nil
}

// Create issues a key for the caller. Tier and rate limit overrides are only
// honoured for admins.
func (s *Service) Create(ctx context.Context, caller principal.Session, req apikeydomain.CreateRequest) (*apikeydomain.SecretResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, apikeydomain.ErrInvalidName
	}

	tier := apikeydomain.TierFree
	rateLimit := s.policy.Get().RateLimitForTier(tier)
	if caller.IsAdmin() {
		if t := strings.ToLower(strings.TrimSpace(req.Tier)); t != "" {
			if !apikeydomain.ValidTier(t) {
				return nil, apikeydomain.ErrInvalidTier
			}
			tier = t
			rateLimit = s.policy.Get().RateLimitForTier(t)
		}
		if req.RateLimit < 0 {
			return nil, apikeydomain.ErrInvalidLimit
		}
		if req.RateLimit > 0 {
			rateLimit = req.RateLimit
		}
	}

	plain, hash, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	fingerprint := apikeydomain.Fingerprint(s.pepper, plain)
	key := &apikeydomain.APIKey{
		ID:             s.genID.Generate(),
		UserID:         caller.UserID,
		Name:           name,
		KeyHash:        hash,
		KeyFingerprint: &fingerprint,
		KeyPrefix:      apikeydomain.DisplayPrefix(plain),
		Description:    strings.TrimSpace(req.Description),
		Status:         apikeydomain.StatusActive,
		Tier:           tier,
		RateLimit:      rateLimit,
		ExpiresAt:      req.ExpiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, key); err != nil {
		if db.IsDuplicateKeyErr(err) {
			s.log.Warn("api key collision", zap.String("key_prefix", key.KeyPrefix))
		}
		return nil, err
	}

	s.log.Info("api key created",
		zap.String("key_id", key.ID.String()),
		zap.String("user_id", caller.UserID.String()),
		zap.String("key_prefix", key.KeyPrefix),
	)
	return &apikeydomain.SecretResponse{Response: toResponse(key), Key: plain}, nil
}

func (s *Service) Update(ctx context.Context, caller principal.Session, id snowflake.ID, req apikeydomain.UpdateRequest) (*apikeydomain.Response, error) {
	key, err := s.findOwned(ctx, s.db, caller, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > maxNameLength {
			return nil, apikeydomain.ErrInvalidName
		}
		key.Name = name
	}
	if req.Description != nil {
		key.Description = strings.TrimSpace(*req.Description)
	}
	if req.ExpiresAt != nil {
		key.ExpiresAt = req.ExpiresAt
	}
	key.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, key); err != nil {
		return nil, err
	}
	resp := toResponse(key)
	return &resp, nil
}

// Rotate issues a replacement key and lets the old one live for a grace
// period so deployed clients can switch over.
func (s *Service) Rotate(ctx context.Context, caller principal.Session, id snowflake.ID) (*apikeydomain.SecretResponse, error) {
	var result *apikeydomain.SecretResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.findOwned(ctx, tx, caller, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if !current.Usable(now) {
			return apikeydomain.ErrNotFound
		}

		graceEnd := now.Add(apiKeyRotationGracePeriod)
		if current.ExpiresAt == nil || current.ExpiresAt.After(graceEnd) {
			current.ExpiresAt = &graceEnd
		}
		current.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, current); err != nil {
			return err
		}

		plain, hash, err := generateAPIKey()
		if err != nil {
			return err
		}
		fingerprint := apikeydomain.Fingerprint(s.pepper, plain)
		next := &apikeydomain.APIKey{
			ID:             s.genID.Generate(),
			UserID:         current.UserID,
			Name:           current.Name,
			KeyHash:        hash,
			KeyFingerprint: &fingerprint,
			KeyPrefix:      apikeydomain.DisplayPrefix(plain),
			Description:    current.Description,
			Status:         apikeydomain.StatusActive,
			Tier:           current.Tier,
			RateLimit:      current.RateLimit,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.repo.Insert(ctx, tx, next); err != nil {
			return err
		}

		result = &apikeydomain.SecretResponse{Response: toResponse(next), Key: plain}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("api key rotated",
		zap.String("key_id", id.String()),
		zap.String("replacement_id", result.ID.String()),
	)
	return result, nil
}

// Revoke flips the key to revoked and soft-deletes it.
func (s *Service) Revoke(ctx context.Context, caller principal.Session, id snowflake.ID) error {
	if _, err := s.findOwned(ctx, s.db, caller, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, s.db, id, s.clock.Now()); err != nil {
		return err
	}
	s.log.Info("api key revoked", zap.String("key_id", id.String()), zap.String("revoked_by", caller.UserID.String()))
	return nil
}

// ExpireStale marks active keys past their expiry as expired.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	return s.repo.ExpireStale(ctx, s.db, s.clock.Now())
}

// findOwned hides keys of other users behind ErrNotFound unless the caller
// is an admin.
func (s *Service) findOwned(ctx context.Context, tx *gorm.DB, caller principal.Session, id snowflake.ID) (*apikeydomain.APIKey, error) {
	if id == 0 {
		return nil, apikeydomain.ErrNotFound
	}
	key, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, apikeydomain.ErrNotFound
	}
	if key.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, apikeydomain.ErrNotFound
	}
	return key, nil
}

func toResponse(key *apikeydomain.APIKey) apikeydomain.Response {
	return apikeydomain.Response{
		ID:          key.ID,
		UserID:      key.UserID,
		Name:        key.Name,
		KeyPrefix:   key.KeyPrefix,
		Description: key.Description,
		Status:      key.Status,
		Tier:        key.Tier,
		RateLimit:   key.RateLimit,
		ExpiresAt:   key.ExpiresAt,
		LastUsedAt:  key.LastUsedAt,
		CreatedAt:   key.CreatedAt,
		UpdatedAt:   key.UpdatedAt,
	}
}

func generateAPIKey() (string, string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}

	plain := apikeydomain.KeyPrefix + hex.EncodeToString(secret)
	hash, err := password.Hash(plain)
	if err != nil {
		return "", "", err
	}
	return plain, hash, nil
}
