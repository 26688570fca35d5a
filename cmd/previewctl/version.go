package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/previewlabs/previewctl/internal/api"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	// The client builds without an API base, so skip the root preflight
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("previewctl %s (minimum orchestrator %s)\n", version, api.MinServerVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
