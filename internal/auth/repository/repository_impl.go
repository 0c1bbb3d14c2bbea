package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

// Create inserts user. A taken email surfaces as ErrUserExists.
func (r *repo) Create(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrUserExists
		}
		return err
	}
	return nil
}

// FindByEmail expects email already lowercased.
func (r *repo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repo) first(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where(query, arg).Take(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, domain.ErrUserNotFound
	case err != nil:
		return nil, err
	}
	return &user, nil
}

func (r *repo) SetPasswordHash(ctx context.Context, id snowflake.ID, hash string) error {
	return r.update(ctx, id, map[string]any{"password_hash": hash})
}

func (r *repo) SetAPIAccess(ctx context.Context, id snowflake.ID, change domain.APIAccessChange) error {
	columns := make(map[string]any, 2)
	if change.Tier != nil {
		columns["api_tier"] = *change.Tier
	}
	if change.RateLimit != nil {
		columns["api_rate_limit"] = *change.RateLimit
	}
	if len(columns) == 0 {
		return nil
	}
	return r.update(ctx, id, columns)
}

func (r *repo) update(ctx context.Context, id snowflake.ID, columns map[string]any) error {
	tx := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(columns)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
