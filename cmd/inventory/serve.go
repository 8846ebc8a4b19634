package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/saltyorg/inventory/internal/config"
	"github.com/saltyorg/inventory/internal/maintenance"
	"github.com/saltyorg/inventory/internal/watch"
	"github.com/saltyorg/inventory/internal/web"
	"github.com/saltyorg/inventory/internal/web/handlers"
)

func newServeCmd() *cobra.Command {
	var (
		port        int
		bind        string
		allowSubnet string

		// Timeout flags (advanced)
		readTimeout     time.Duration
		shutdownTimeout time.Duration
		websocketPing   time.Duration
		mutationTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the item API and live streams over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if flags.Changed("bind") {
				cfg.Server.Bind = bind
			}
			if flags.Changed("allow-subnet") {
				cfg.Server.AllowSubnet = allowSubnet
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			config.SetGlobalTimeouts(&config.TimeoutConfig{
				HTTPRead:      readTimeout,
				Shutdown:      shutdownTimeout,
				WebSocketPing: websocketPing,
				Mutation:      mutationTimeout,
			})

			return serve(cmd.Context())
		},
	}

	defaults := config.DefaultTimeoutConfig()
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP server port (or set INVENTORY_SERVER__PORT)")
	cmd.Flags().StringVarP(&bind, "bind", "b", "", "IP address to bind to (e.g., 127.0.0.1, 0.0.0.0)")
	cmd.Flags().StringVarP(&allowSubnet, "allow-subnet", "a", "", "CIDR subnet allowed to connect (e.g., 192.168.1.0/24)")

	cmd.Flags().DurationVar(&readTimeout, "read-timeout", defaults.HTTPRead, "Timeout for reading HTTP requests")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", defaults.Shutdown, "Grace period for open requests on shutdown")
	cmd.Flags().DurationVar(&websocketPing, "websocket-ping", defaults.WebSocketPing, "Interval between WebSocket keepalive pings")
	cmd.Flags().DurationVar(&mutationTimeout, "mutation-timeout", defaults.Mutation, "How long a request waits for a write to persist")

	return cmd
}

func serve(parent context.Context) error {
	// Warn if binding to all interfaces without an allow list
	if (cfg.Server.Bind == "" || cfg.Server.Bind == "0.0.0.0" || cfg.Server.Bind == "::") && cfg.Server.AllowSubnet == "" {
		log.Warn().Msg("Server is accessible from all interfaces without subnet restrictions. Consider using --bind or --allow-subnet for security.")
	}

	log.Info().
		Str("version", version).
		Int("port", cfg.Server.Port).
		Str("bind", cfg.Server.Bind).
		Str("allow_subnet", cfg.Server.AllowSubnet).
		Str("database", databasePath()).
		Msg("Starting Inventory")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(store)

	server, err := web.NewServer(store, cfg.Server)
	if err != nil {
		return err
	}
	server.Handlers().SetVersionInfo(handlers.VersionInfo{Version: version, Commit: commit, Date: date})

	scheduler := maintenance.New(store.DB(), cfg.Maintenance)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()
	server.Handlers().SetMaintenance(scheduler)

	if cfg.Watch.Enabled {
		watcher, err := watch.New(store.Path(), store.Hub(), cfg.Watch.Debounce)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize database watcher")
		} else if err := watcher.Start(); err != nil {
			watcher.Stop()
			log.Warn().Err(err).Msg("Failed to start database watcher")
		} else {
			defer watcher.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Server error")
		return err
	}

	log.Info().Msg("Inventory stopped")
	return nil
}
