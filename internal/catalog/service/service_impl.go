package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/derrickmugabwa/kenya-food-database-api/internal/catalog/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/option"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/repository"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxSlugScan bounds the category scan used for slug lookups.
const maxSlugScan = 500

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	log        *zap.Logger
	foods      repository.Repository[domain.Food]
	categories repository.Repository[domain.Category]
	nutrients  repository.Repository[domain.Nutrient]
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("catalog.service"),
		foods:      repository.ProvideStore[domain.Food](p.DB),
		categories: repository.ProvideStore[domain.Category](p.DB),
		nutrients:  repository.ProvideStore[domain.Nutrient](p.DB),
	}
}

func (s *Service) ListFoods(ctx context.Context, page pagination.Pagination) (pagination.Page[domain.Food], error) {
	rows, err := s.foods.Find(ctx, nil,
		option.WithPreload("Category", "Nutrients"),
		option.WithOrder("id ASC"),
		option.WithPage(page),
	)
	if err != nil {
		return pagination.Page[domain.Food]{}, err
	}
	return pagination.BuildPage(deref(rows), page), nil
}

func (s *Service) GetFood(ctx context.Context, id int64) (*domain.Food, error) {
	if id <= 0 {
		return nil, domain.ErrNotFound
	}
	food, err := s.foods.FindOne(ctx, &domain.Food{ID: id}, option.WithPreload("Category", "Nutrients"))
	if err != nil {
		return nil, err
	}
	if food == nil {
		return nil, domain.ErrNotFound
	}
	return food, nil
}

func (s *Service) ListCategories(ctx context.Context, page pagination.Pagination) (pagination.Page[domain.CategoryResponse], error) {
	rows, err := s.categories.Find(ctx, nil, option.WithOrder("name ASC"), option.WithPage(page))
	if err != nil {
		return pagination.Page[domain.CategoryResponse]{}, err
	}
	items := make([]domain.CategoryResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, toCategoryResponse(row))
	}
	return pagination.BuildPage(items, page), nil
}

func (s *Service) GetCategory(ctx context.Context, idOrSlug string) (*domain.CategoryResponse, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return nil, domain.ErrNotFound
	}

	if id, err := strconv.ParseInt(idOrSlug, 10, 64); err == nil {
		if id <= 0 {
			return nil, domain.ErrNotFound
		}
		category, err := s.categories.FindOne(ctx, &domain.Category{ID: id})
		if err != nil {
			return nil, err
		}
		if category == nil {
			return nil, domain.ErrNotFound
		}
		resp := toCategoryResponse(category)
		return &resp, nil
	}

	want := slug.Make(idOrSlug)
	rows, err := s.categories.Find(ctx, nil, option.WithOrder("id ASC"), option.WithLimit(maxSlugScan))
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if slug.Make(row.Name) == want {
			resp := toCategoryResponse(row)
			return &resp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Service) ListNutrients(ctx context.Context, page pagination.Pagination) (pagination.Page[domain.Nutrient], error) {
	rows, err := s.nutrients.Find(ctx, nil, option.WithOrder("id ASC"), option.WithPage(page))
	if err != nil {
		return pagination.Page[domain.Nutrient]{}, err
	}
	return pagination.BuildPage(deref(rows), page), nil
}

func (s *Service) GetNutrient(ctx context.Context, id int64) (*domain.Nutrient, error) {
	if id <= 0 {
		return nil, domain.ErrNotFound
	}
	nutrient, err := s.nutrients.FindOne(ctx, &domain.Nutrient{ID: id})
	if err != nil {
		return nil, err
	}
	if nutrient == nil {
		return nil, domain.ErrNotFound
	}
	return nutrient, nil
}

func toCategoryResponse(c *domain.Category) domain.CategoryResponse {
	return domain.CategoryResponse{Category: *c, Slug: slug.Make(c.Name)}
}

func deref[T any](rows []*T) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out
}
