package usage

import (
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/oauth2provider"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/cache"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/usage/repository"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/usage/service"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/usage/tracker"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(cache.NewClientResolverCache),
	fx.Provide(func(s *oauth2provider.Service) tracker.ClientResolver { return s }),
	fx.Provide(tracker.New),
	fx.Invoke(tracker.RegisterLifecycle),
)
