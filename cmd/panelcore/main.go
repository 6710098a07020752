// Package main is the entry point for the panelcore CLI.
//
// Panelcore can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	panelcore serve -c panel.yaml    # Start polling and the state API
//	panelcore validate -c panel.yaml # Validate configuration
//	panelcore version                # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "panelcore",
	Short: "A polling and reconciliation engine for home climate and energy devices",
	Long: `Panelcore polls climate units and an energy controller, coalesces
operator edits into single outgoing commands, and reconciles fresh device
state without clobbering unsent changes.

It serves the reconciled state as JSON and Server-Sent Events for a
rendering front end, and accepts control edits over the same HTTP surface.

Quick start:
  1. Create a config file (panel.yaml)
  2. Run: panelcore serve -c panel.yaml
  3. Consume http://localhost:8080/api/state and /api/stream

Example config:
  port: 8080
  read_interval: 3s
  devices:
    - id: living
      url: http://192.168.1.60
      kind: aircon
    - id: solar
      url: http://192.168.1.10
      kind: controller`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this panelcore binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("panelcore %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
