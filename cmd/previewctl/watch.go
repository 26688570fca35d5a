package main

import (
	"github.com/spf13/cobra"

	"github.com/previewlabs/previewctl/internal/cleanup"
	"github.com/previewlabs/previewctl/internal/logstream"
	"github.com/previewlabs/previewctl/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Live dashboard for a preview session",
	Long: `Open a full-screen dashboard that follows a session: startup
progress, health telemetry and a scrolling log tail in one view.

Keys: f toggles follow mode, arrow keys scroll, G jumps to the newest
line, q quits.

While the dashboard is being driven, keypresses count as session activity
and the sandbox's TTL is extended automatically; an unattended session is
left to expire server-side.

Example:
  previewctl watch sess-7f3a`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		streams := logstream.NewManager(logstream.Adapt(client), logstream.DefaultConfig())
		defer streams.Close()

		// Keypresses count as session activity, so an attended dashboard
		// keeps the sandbox's TTL extended while idle sessions expire.
		handler := cleanup.NewHandler(client, args[0])
		extender := cleanup.NewAutoExtender(handler, cleanup.DefaultAutoExtendConfig())
		stop := extender.Start()
		defer stop()

		return tui.Run(client, streams, args[0], extender.RecordActivity)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
