package main

import (
	"log"

	"github.com/spf13/cobra"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "dora",
		Short: "Serve and report DORA metrics from a pipeline snapshot",
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Print the dashboard to the terminal",
		Args:  cobra.NoArgs,
		RunE:  runReport,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file")

	serveCmd.Flags().Bool("watch", false, "Reload a local snapshot when it changes (overrides config)")

	reportCmd.Flags().String("window", "30", "Lookback window in days (7, 30, 90 or all)")
	reportCmd.Flags().Int("top", 10, "Number of actors to show (0 for all)")
	reportCmd.Flags().String("snapshot", "", "Snapshot location (overrides config)")

	rootCmd.AddCommand(serveCmd, reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
