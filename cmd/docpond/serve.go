package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docpond/internal/config"
	"github.com/jackzampolin/docpond/internal/home"
	"github.com/jackzampolin/docpond/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docpond server",
	Long: `Start the docpond HTTP server.

This starts the HTTP API, the worker pools, and (when configured as
managed) the docling-serve container. Interrupted processing jobs are
resumed on startup. When the server shuts down, docling-serve is
stopped as well.

Examples:
  docpond serve                    # Start on default port 8141
  docpond serve --port 3000        # Start on custom port
  docpond serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cm.WatchConfig()

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			Home:          h,
			ConfigManager: cm,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8141", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
