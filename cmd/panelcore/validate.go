package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brickbattery/panelcore/config"
)

// validateCmd validates a config file without starting the engine.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a panelcore configuration file without starting the engine.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  panelcore validate -c panel.yaml
  panelcore validate --config /etc/panelcore/panel.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	aircons := 0
	controllers := 0
	for _, d := range cfg.Devices {
		switch d.Kind {
		case "aircon":
			aircons++
		case "controller":
			controllers++
		}
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:          %d\n", cfg.Port)
	fmt.Printf("  Read interval: %s\n", cfg.ReadInterval.Duration())
	fmt.Printf("  Devices:       %d aircon + %d controller = %d total\n",
		aircons, controllers, len(cfg.Devices))

	return nil
}
