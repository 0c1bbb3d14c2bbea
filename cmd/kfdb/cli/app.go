package cli

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/clock"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/config"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/observability"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db"
	"go.uber.org/fx"
)

const oneShotTimeout = 5 * time.Minute

// coreModules is the infrastructure every command needs.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		clock.Module,
	)
}

func newSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

// runOneShot starts an app built from opts, calls fn and stops the app again.
// Values fn needs are pulled out with fx.Populate inside opts.
func runOneShot(ctx context.Context, fn func(context.Context) error, opts ...fx.Option) error {
	app := fx.New(
		coreModules(),
		fx.Options(opts...),
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, oneShotTimeout)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}
