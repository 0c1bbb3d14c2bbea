package auth

import (
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/repository"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/service"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(session.NewManager),
	fx.Provide(repository.New),
	fx.Provide(
		fx.Annotate(
			func(m *session.Manager) *session.Manager { return m },
			fx.As(new(service.TokenIssuer)),
		),
	),
	fx.Provide(service.New),
)
