package cli

import (
	"github.com/derrickmugabwa/kenya-food-database-api/internal/migration"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/scheduler"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API together with the usage tracker and, when
SCHEDULER_ENABLED is set, the maintenance scheduler. Pending migrations are
applied first unless --skip-migrations is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []fx.Option{
				coreModules(),
				server.Module,
				scheduler.Module,
			}
			if !skipMigrations {
				opts = append(opts, migration.Module)
			}
			app := fx.New(opts...)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on start-up")

	return cmd
}
