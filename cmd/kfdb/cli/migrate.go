package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/derrickmugabwa/kenya-food-database-api/internal/config"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/migration"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/seed"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var errVersionedOnly = errors.New("versioned migrations are only available on postgres")

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateVersionCmd())

	return cmd
}

// ---------- migrate up ----------

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations and seed the bootstrap admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				conn *gorm.DB
				cfg  config.Config
			)
			return runOneShot(cmd.Context(), func(context.Context) error {
				if err := migration.Apply(conn); err != nil {
					return err
				}
				if err := seed.EnsureAdmin(conn, cfg.Bootstrap); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}, fx.Populate(&conn, &cfg))
		},
	}
}

// ---------- migrate down ----------

func newMigrateDownCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var conn *gorm.DB
			return runOneShot(cmd.Context(), func(context.Context) error {
				if conn.Dialector.Name() != "postgres" {
					return errVersionedOnly
				}
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				if err := migration.Rollback(sqlDB, steps); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
				return nil
			}, fx.Populate(&conn))
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	return cmd
}

// ---------- migrate version ----------

func newMigrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			var conn *gorm.DB
			return runOneShot(cmd.Context(), func(context.Context) error {
				if conn.Dialector.Name() != "postgres" {
					return errVersionedOnly
				}
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				version, dirty, err := migration.Version(sqlDB)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", version, dirty)
				return nil
			}, fx.Populate(&conn))
		},
	}
}
