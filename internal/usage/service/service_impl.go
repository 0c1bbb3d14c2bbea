package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	usagedomain "github.com/derrickmugabwa/kenya-food-database-api/internal/usage/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo usagedomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo usagedomain.Repository
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("usage.service"),
		repo: p.Repo,
	}
}

// List pages usage logs newest first. Non-admins only see rows produced by
// their own OAuth clients and API keys.
func (s *Service) List(ctx context.Context, caller principal.Session, page pagination.Pagination) (pagination.Page[usagedomain.Response], error) {
	rows, err := s.repo.List(ctx, s.db, ownerScope(caller), page)
	if err != nil {
		return pagination.Page[usagedomain.Response]{}, err
	}

	items := make([]usagedomain.Response, 0, len(rows))
	for _, row := range rows {
		items = append(items, toResponse(row))
	}
	return pagination.BuildPage(items, page), nil
}

func (s *Service) Get(ctx context.Context, caller principal.Session, id snowflake.ID) (*usagedomain.Response, error) {
	if id == 0 {
		return nil, usagedomain.ErrNotFound
	}
	row, err := s.repo.FindByID(ctx, s.db, id, ownerScope(caller))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, usagedomain.ErrNotFound
	}
	resp := toResponse(*row)
	return &resp, nil
}

func ownerScope(caller principal.Session) *snowflake.ID {
	if caller.IsAdmin() {
		return nil
	}
	owner := caller.UserID
	return &owner
}

func toResponse(row usagedomain.UsageLog) usagedomain.Response {
	return usagedomain.Response{UsageLog: row, PrincipalType: row.Kind()}
}
