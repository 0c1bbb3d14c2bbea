package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	Update(ctx context.Context, db *gorm.DB, key *APIKey) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*APIKey, error)
	List(ctx context.Context, db *gorm.DB, userID *snowflake.ID, page pagination.Pagination) ([]APIKey, error)
	FindActiveByFingerprint(ctx context.Context, db *gorm.DB, fingerprint string) ([]APIKey, error)
	ListActiveWithoutFingerprint(ctx context.Context, db *gorm.DB, limit int) ([]APIKey, error)
	SetFingerprint(ctx context.Context, db *gorm.DB, id snowflake.ID, fingerprint string) error
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	ExpireStale(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}
