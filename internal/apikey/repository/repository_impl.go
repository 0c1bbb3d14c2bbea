package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/derrickmugabwa/kenya-food-database-api/internal/apikey/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
	"gorm.io/gorm"
)

const selectColumns = `id, user_id, name, key_hash, key_fingerprint, key_prefix, description, status, tier, rate_limit, expires_at, last_used_at, created_at, updated_at`

type repo struct{}

func Provide() apikeydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, key *apikeydomain.APIKey) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO api_keys (id, user_id, name, key_hash, key_fingerprint, key_prefix, description, status, tier, rate_limit, expires_at, last_used_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID,
		key.UserID,
		key.Name,
		key.KeyHash,
		key.KeyFingerprint,
		key.KeyPrefix,
		key.Description,
		key.Status,
		key.Tier,
		key.RateLimit,
		key.ExpiresAt,
		key.LastUsedAt,
		key.CreatedAt,
		key.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, key *apikeydomain.APIKey) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_keys
		 SET name = ?, description = ?, status = ?, tier = ?, rate_limit = ?, expires_at = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		key.Name,
		key.Description,
		key.Status,
		key.Tier,
		key.RateLimit,
		key.ExpiresAt,
		key.UpdatedAt,
		key.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*apikeydomain.APIKey, error) {
	var key apikeydomain.APIKey
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM api_keys WHERE id = ? AND deleted_at IS NULL`,
		id,
	).Scan(&key).Error
	if err != nil {
		return nil, err
	}
	if key.ID == 0 {
		return nil, nil
	}
	return &key, nil
}

// List returns up to page.Limit+1 rows so the caller can tell whether a next
// page exists. A nil userID lists every key.
func (r *repo) List(ctx context.Context, db *gorm.DB, userID *snowflake.ID, page pagination.Pagination) ([]apikeydomain.APIKey, error) {
	page = page.Normalize()

	query := `SELECT ` + selectColumns + ` FROM api_keys WHERE deleted_at IS NULL`
	args := []any{}
	if userID != nil {
		query += ` AND user_id = ?`
		args = append(args, *userID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, page.Limit+1, page.Offset())

	var keys []apikeydomain.APIKey
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repo) FindActiveByFingerprint(ctx context.Context, db *gorm.DB, fingerprint string) ([]apikeydomain.APIKey, error) {
	var keys []apikeydomain.APIKey
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM api_keys
		 WHERE key_fingerprint = ? AND status = ? AND deleted_at IS NULL`,
		fingerprint,
		apikeydomain.StatusActive,
	).Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// ListActiveWithoutFingerprint returns legacy rows created before
// fingerprints existed, oldest first.
func (r *repo) ListActiveWithoutFingerprint(ctx context.Context, db *gorm.DB, limit int) ([]apikeydomain.APIKey, error) {
	var keys []apikeydomain.APIKey
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM api_keys
		 WHERE key_fingerprint IS NULL AND status = ? AND deleted_at IS NULL
		 ORDER BY created_at ASC, id ASC LIMIT ?`,
		apikeydomain.StatusActive,
		limit,
	).Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repo) SetFingerprint(ctx context.Context, db *gorm.DB, id snowflake.ID, fingerprint string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_keys SET key_fingerprint = ? WHERE id = ? AND key_fingerprint IS NULL`,
		fingerprint,
		id,
	).Error
}

func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`,
		at,
		id,
	).Error
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_keys SET status = ?, updated_at = ?, deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		apikeydomain.StatusRevoked,
		at,
		at,
		id,
	).Error
}

func (r *repo) ExpireStale(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	tx := db.WithContext(ctx).Exec(
		`UPDATE api_keys SET status = ?, updated_at = ?
		 WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ? AND deleted_at IS NULL`,
		apikeydomain.StatusExpired,
		now,
		apikeydomain.StatusActive,
		now,
	)
	return tx.RowsAffected, tx.Error
}
