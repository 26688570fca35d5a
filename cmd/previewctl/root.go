package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/previewlabs/previewctl/internal/api"
	"github.com/previewlabs/previewctl/internal/config"
)

// version is stamped at release time
const version = "1.2.0"

var (
	flagAPIBase string
	flagVerbose bool

	cfg    config.Config
	client *api.Client
)

var rootCmd = &cobra.Command{
	Use:   "previewctl",
	Short: "Preview sandbox orchestration and observability client",
	Long: `previewctl manages ephemeral preview sandboxes for generated projects.

It drives the staged readiness protocol (generate, build, deploy,
health-check, ready), streams sandbox logs with automatic reconnection,
interprets health telemetry, classifies startup failures with actionable
remediation, and manages each sandbox's time-to-live.

Configuration is read from .previewctl.yaml in the working directory and
PREVIEWCTL_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load("")
		if err != nil {
			return err
		}
		if flagAPIBase != "" {
			cfg.APIBase = flagAPIBase
		}
		client, err = api.NewClient(api.DefaultConfig(cfg.APIBase))
		if err != nil {
			return fmt.Errorf("failed to create API client: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIBase, "api-base", "", "Orchestrator API base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
