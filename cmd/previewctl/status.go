package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/previewlabs/previewctl/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show orchestration status for a session",
	Long: `Show the current orchestration progress snapshot for a session.

Example:
  $ previewctl status sess-7f3a
  building_image  [ 45%] building docker image`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		progress, err := client.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printProgress(progress)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printProgress(p *types.Progress) {
	stageColor := color.New(color.FgCyan).SprintFunc()
	switch p.Stage {
	case types.StageReady:
		stageColor = color.New(color.FgGreen).SprintFunc()
	case types.StageFailed:
		stageColor = color.New(color.FgRed).SprintFunc()
	}

	fmt.Printf("%s  [%3d%%] %s\n", stageColor(string(p.Stage)), p.OverallProgress, p.Message)
	if p.Error != "" {
		fmt.Printf("  error: %s\n", p.Error)
	}
	if p.BackendURL != "" {
		fmt.Printf("  backend: %s\n", p.BackendURL)
	}
}
