package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docpond/internal/config"
	"github.com/jackzampolin/docpond/internal/doclingsrv"
	"github.com/jackzampolin/docpond/internal/home"
	"github.com/jackzampolin/docpond/internal/providers"
)

var doclingCmd = &cobra.Command{
	Use:   "docling",
	Short: "Manage the docling-serve container",
	Long: `Manage the docling-serve container lifecycle.

docling-serve provides the optional whole-document layout analysis
backend. It runs in a Docker container with model weights cached under
the docpond home directory.

Examples:
  docpond docling start   # Start the docling-serve container
  docpond docling stop    # Stop the container (model cache preserved)
  docpond docling status  # Check container status
  docpond docling logs    # View container logs`,
}

// doclingManager builds a container manager from the resolved config.
func doclingManager() (*doclingsrv.Manager, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	dc := cm.Get().Docling

	return doclingsrv.NewManager(doclingsrv.Config{
		ContainerName: dc.ContainerName,
		Image:         dc.Image,
		HostPort:      dc.Port,
		CachePath:     h.TmpPath(),
	})
}

var doclingStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the docling-serve container",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := doclingManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting docling-serve (first boot downloads model weights)...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start docling-serve: %w", err)
		}

		fmt.Printf("docling-serve is running at %s\n", mgr.URL())
		return nil
	},
}

var doclingStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the docling-serve container",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := doclingManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping docling-serve...")
		if err := mgr.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop docling-serve: %w", err)
		}

		fmt.Println("docling-serve stopped")
		return nil
	},
}

var doclingStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show docling-serve container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := doclingManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case doclingsrv.StatusRunning:
			fmt.Printf("Status: %s\n", status)
			fmt.Printf("URL: %s\n", mgr.URL())

			client, err := providers.NewDoclingClient(providers.DoclingConfig{BaseURL: mgr.URL()})
			if err == nil {
				if err := client.HealthCheck(ctx); err != nil {
					fmt.Printf("Health: unhealthy (%v)\n", err)
				} else {
					fmt.Println("Health: healthy")
				}
			}
		case doclingsrv.StatusStopped:
			fmt.Printf("Status: %s (use 'docpond docling start' to start)\n", status)
		case doclingsrv.StatusNotFound:
			fmt.Printf("Status: %s (use 'docpond docling start' to create)\n", status)
		default:
			fmt.Printf("Status: %s\n", status)
		}

		return nil
	},
}

var doclingLogsTail string

var doclingLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show docling-serve container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := doclingManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(ctx, doclingLogsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}
		fmt.Print(logs)
		return nil
	},
}

func init() {
	doclingLogsCmd.Flags().StringVar(&doclingLogsTail, "tail", "100", "Number of lines to show from the end")

	doclingCmd.AddCommand(doclingStartCmd)
	doclingCmd.AddCommand(doclingStopCmd)
	doclingCmd.AddCommand(doclingStatusCmd)
	doclingCmd.AddCommand(doclingLogsCmd)
	rootCmd.AddCommand(doclingCmd)
}
