package apikey

import (
	"github.com/derrickmugabwa/kenya-food-database-api/internal/apikey/repository"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/apikey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewVerifier),
)
