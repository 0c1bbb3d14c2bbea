package cli

import (
	"context"
	"fmt"

	"github.com/derrickmugabwa/kenya-food-database-api/internal/apikey"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/oauth2provider"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/clock"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/jobmetrics"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/ratelimit"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run maintenance jobs",
	}

	cmd.AddCommand(newJobsRunCmd())

	return cmd
}

func newJobsRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every enabled maintenance job once",
		Long: `Run a single scheduler tick: expired OAuth access tokens are purged and
API keys past their expiry are marked expired. When Redis is configured the
jobs take the same locks as the long-running scheduler. When PUSHGATEWAY_URL
is set the outcome of the run is pushed to the Prometheus Pushgateway.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				sched  *scheduler.Scheduler
				pusher *jobmetrics.Pusher
				clk    clock.Clock
			)
			return runOneShot(cmd.Context(), func(ctx context.Context) error {
				runErr := sched.RunOnce(ctx)
				if err := pusher.Push(ctx, clk.Now(), runErr); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "job metrics push failed: %v\n", err)
				}
				if runErr != nil {
					return runErr
				}
				fmt.Fprintln(cmd.OutOrStdout(), "maintenance jobs finished")
				return nil
			},
				auth.Module,
				oauth2provider.Providers,
				apikey.Module,
				ratelimit.Module,
				jobmetrics.Module,
				scheduler.Providers,
				fx.Populate(&sched, &pusher, &clk),
			)
		},
	}
}
