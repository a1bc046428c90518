package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"qarzhy/internal/storage"
)

func newMigrateCommand(a *app) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if cfg.DataBackend != "sqlite" {
				return fmt.Errorf("migrate needs the sqlite backend, got %q", cfg.DataBackend)
			}

			if !status {
				if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
					return err
				}
			}
			version, dirty, err := storage.MigrationVersion(cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s: schema version %d", cfg.SQLiteDBPath, version)
			if dirty {
				fmt.Fprint(a.out, " (dirty)")
			}
			fmt.Fprintln(a.out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "print the schema version without migrating")
	return cmd
}
