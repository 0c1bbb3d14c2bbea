package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	return newRootCmd(version, commit, date).Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kfdb",
		Short: "Kenya Food Database API",
		Long: `kfdb serves the Kenya Food Database REST API.

Callers authenticate with a session token, an OAuth client-credentials token
or an API key. The same binary applies schema migrations and runs the
maintenance jobs on demand.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(envFile)
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before reading configuration")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newJobsCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

// loadEnvFile applies an explicit dotenv file. Variables already set in the
// environment win, matching the implicit .env lookup done by config.Load.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return godotenv.Load(path)
}
