package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/docpond/internal/api"
	"github.com/jackzampolin/docpond/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "docpond",
	Short: "Scanned document ingestion with grounded OCR",
	Long: `docpond turns scanned PDFs into structured markdown using
grounding-capable OCR models.

The pipeline:
  - Splits each document into single-page PDFs
  - Renders and OCRs every page independently
  - Parses bounding-box references out of the model output
  - Crops referenced image regions and substitutes their final URLs
  - Tracks per-page and per-document progress`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.docpond/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "docpond home directory (default: ~/.docpond)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
