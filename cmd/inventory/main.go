package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/saltyorg/inventory/internal/config"
	"github.com/saltyorg/inventory/internal/inventory"
	"github.com/saltyorg/inventory/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	dataDir   string
	verbosity int
)

// cfg is loaded before any subcommand runs
var cfg *config.Config

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "inventory",
		Short:             "Inventory - item store with live queries",
		Long:              `Inventory keeps a local SQLite item store and streams every change to its readers.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Directory holding the item database (or set INVENTORY_DATA_DIR)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")

	rootCmd.AddCommand(
		newItemCmd(),
		newDBCmd(),
		newServeCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "inventory %s (commit: %s, built: %s)\n", version, commit, date)
			},
		},
	)

	return rootCmd
}

// setup loads configuration, applies flag overrides and configures logging
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("data-dir") {
		loaded.DataDir = dataDir
	}
	loaded.Log.Level = logging.LevelForVerbosity(verbosity, loaded.Log.Level)

	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	logging.Apply(cfg.Log, databasePath())
	return nil
}

func databasePath() string {
	return filepath.Join(cfg.DataDir, inventory.DatabaseName)
}

// openStore returns the process-wide item database
func openStore() (*inventory.Database, error) {
	store, err := inventory.GetDatabase(inventory.DataDir(cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open item database: %w", err)
	}
	return store, nil
}

// closeStore closes store, logging instead of failing the command
func closeStore(store *inventory.Database) {
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close item database")
	}
}
