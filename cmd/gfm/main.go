package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags "-X main.version=...")
var (
	version = "0.1.0"
	commit  = "dev"
)

// rootCmd runs the server when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "gfm",
	Short: "Golden Firebase Manager local dashboard backend",
	Long: `gfm serves the HTTP and WebSocket API behind the Golden Firebase Manager
dashboard. It drives the firebase, gcloud and npm command line tools for a
project directory and streams their output to the browser.

Usage:
  gfm serve          Start the API server (default)
  gfm config print   Print the effective configuration as YAML
  gfm version        Print version information`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "directory containing config.yaml")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "gfm %s (%s)\n", version, commit)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
