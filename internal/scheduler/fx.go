package scheduler

import (
	"context"

	apikeydomain "github.com/derrickmugabwa/kenya-food-database-api/internal/apikey/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/oauth2provider"
	obsmetrics "github.com/derrickmugabwa/kenya-food-database-api/internal/observability/metrics"
	"go.uber.org/fx"
)

// Providers builds the scheduler without starting its loop; one-shot
// commands use it to run a single tick.
var Providers = fx.Options(
	fx.Provide(ProvideConfig),
	fx.Provide(obsmetrics.SchedulerWithConfig),
	fx.Provide(func(s *oauth2provider.Service) TokenPurger { return s }),
	fx.Provide(func(s apikeydomain.Service) KeyExpirer { return s }),
	fx.Provide(New),
)

var Module = fx.Module("scheduler",
	Providers,
	fx.Invoke(RegisterLifecycle),
)

func RegisterLifecycle(lc fx.Lifecycle, cfg Config, sched *Scheduler) {
	if !cfg.Enabled {
		return
	}

	var cancel context.CancelFunc
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				sched.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
