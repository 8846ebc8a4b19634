package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/saltyorg/inventory/internal/maintenance"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database file utilities",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the database file path",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), databasePath())
			},
		},
		newMaintenanceCmd("optimize", "Refresh query planner statistics", (*maintenance.Scheduler).RunOptimize),
		newMaintenanceCmd("vacuum", "Rebuild the database file to reclaim space", (*maintenance.Scheduler).RunVacuum),
	)

	return cmd
}

func newMaintenanceCmd(use, short string, run func(*maintenance.Scheduler) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(store)

			if err := run(maintenance.New(store.DB(), cfg.Maintenance)); err != nil {
				return fmt.Errorf("%s failed: %w", use, err)
			}
			log.Info().Str("task", use).Str("path", store.Path()).Msg("Maintenance completed")
			return nil
		},
	}
}
