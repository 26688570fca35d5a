package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <session-id>",
	Short: "Show a combined observability snapshot",
	Long: `Fetch health, recent logs, failures and the event timeline for a
session in one call.

Example:
  previewctl snapshot sess-7f3a`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := client.Snapshot(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		bold := color.New(color.Bold).SprintFunc()
		if snap.Health != nil {
			fmt.Println(bold("Health"))
			printHealth(snap.Health)
			fmt.Println()
		}
		if len(snap.Failures) > 0 {
			fmt.Println(bold("Failures"))
			red := color.New(color.FgRed).SprintFunc()
			for _, f := range snap.Failures {
				fmt.Printf("  %s %s\n", red(string(f.Category)), f.Message)
			}
			fmt.Println()
		}
		if len(snap.Timeline) > 0 {
			fmt.Println(bold("Timeline"))
			for _, ev := range snap.Timeline {
				fmt.Printf("  %s %s", ev.Timestamp.Format("15:04:05"), ev.Event)
				if ev.Detail != "" {
					fmt.Printf(" (%s)", ev.Detail)
				}
				fmt.Println()
			}
			fmt.Println()
		}
		if len(snap.Logs) > 0 {
			fmt.Println(bold("Recent logs"))
			for _, e := range snap.Logs {
				printLogEntry(e)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}
