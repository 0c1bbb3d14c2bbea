package audit

import (
	"github.com/derrickmugabwa/kenya-food-database-api/internal/audit/repository"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
