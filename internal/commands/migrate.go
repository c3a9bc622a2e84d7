package commands

import (
	"github.com/spf13/cobra"

	"branch-ledger/internal/repository"
	"branch-ledger/internal/server"
	"branch-ledger/migrations"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, opts, (*repository.Migrator).Up)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, opts, (*repository.Migrator).Down)
		},
	})

	return cmd
}

func runMigration(cmd *cobra.Command, opts *rootOptions, apply func(*repository.Migrator) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	logger := server.NewLogger(cfg)

	db, err := server.OpenDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator, err := repository.NewMigrator(db, migrations.FS, logger)
	if err != nil {
		return err
	}
	return apply(migrator)
}
