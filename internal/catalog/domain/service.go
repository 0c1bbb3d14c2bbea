package domain

import (
	"context"
	"errors"

	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
)

var ErrNotFound = errors.New("not_found")

// CategoryResponse adds the URL slug derived from the category name.
type CategoryResponse struct {
	Category
	Slug string `json:"slug"`
}

type Service interface {
	ListFoods(ctx context.Context, page pagination.Pagination) (pagination.Page[Food], error)
	GetFood(ctx context.Context, id int64) (*Food, error)
	ListCategories(ctx context.Context, page pagination.Pagination) (pagination.Page[CategoryResponse], error)
	// GetCategory accepts a numeric id or a slug.
	GetCategory(ctx context.Context, idOrSlug string) (*CategoryResponse, error)
	ListNutrients(ctx context.Context, page pagination.Pagination) (pagination.Page[Nutrient], error)
	GetNutrient(ctx context.Context, id int64) (*Nutrient, error)
}
