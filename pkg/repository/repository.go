package repository

import (
	"context"

	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a read-mostly store keyed by struct filters.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Count(ctx context.Context, query *T) (int64, error)
}
