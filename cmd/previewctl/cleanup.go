package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/previewlabs/previewctl/internal/cleanup"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <session-id>",
	Short: "Release a preview sandbox",
	Long: `Release a session's container resources and discard its server-side
observability buffers.

Release is best-effort: if the orchestrator is unreachable the remote TTL
reclaims the container anyway.

Example:
  previewctl cleanup sess-7f3a --reason user_requested`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")

		handler := cleanup.NewHandler(client, args[0])
		if err := handler.Cleanup(cmd.Context(), reason); err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s session %s released\n", green("✓"), args[0])
		return nil
	},
}

var extendCmd = &cobra.Command{
	Use:   "extend <session-id>",
	Short: "Extend a sandbox's time-to-live",
	Long: `Request a TTL extension for a running session.

Example:
  previewctl extend sess-7f3a --minutes 30`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, _ := cmd.Flags().GetInt("minutes")

		resp, err := client.ExtendTTL(cmd.Context(), args[0], minutes)
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("extension rejected: %s", resp.Error)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s ttl extended", green("✓"))
		if resp.TTLRemaining > 0 {
			fmt.Printf(" (%dm remaining)", resp.TTLRemaining)
		}
		fmt.Println()
		return nil
	},
}

var ttlStatusCmd = &cobra.Command{
	Use:   "ttl [session-id]",
	Short: "Show cleanup/TTL status",
	Long: `Show TTL and cleanup status for one session, or the global view when
no session is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := ""
		if len(args) == 1 {
			sessionID = args[0]
		}
		status, err := client.GetCleanupStatus(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		if sessionID == "" {
			fmt.Printf("active sessions: %d\n", status.ActiveSessions)
			return nil
		}
		fmt.Printf("session:   %s\n", status.SessionID)
		fmt.Printf("cleaned:   %v\n", status.CleanedUp)
		if !status.ExpiresAt.IsZero() {
			fmt.Printf("expires:   %s\n", status.ExpiresAt)
		}
		return nil
	},
}

func init() {
	cleanupCmd.Flags().String("reason", "user_requested", "Reason recorded with the release")
	extendCmd.Flags().Int("minutes", 15, "Minutes to extend")
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(extendCmd)
	rootCmd.AddCommand(ttlStatusCmd)
}
