package catalog

import (
	"github.com/derrickmugabwa/kenya-food-database-api/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(service.New),
)
