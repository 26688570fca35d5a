package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/previewlabs/previewctl/internal/logstream"
	"github.com/previewlabs/previewctl/internal/types"
)

var logsCmd = &cobra.Command{
	Use:   "logs <session-id>",
	Short: "Fetch or follow sandbox logs",
	Long: `Fetch recent log entries for a session, or follow them live.

With --follow, historical entries are replayed first and new entries are
streamed as they arrive, reconnecting automatically if the stream drops.
Press Ctrl-C to stop.

Examples:
  previewctl logs sess-7f3a --tail 50
  previewctl logs sess-7f3a --follow --level error`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tail, _ := cmd.Flags().GetInt("tail")
		level, _ := cmd.Flags().GetString("level")
		follow, _ := cmd.Flags().GetBool("follow")

		if level != "" && !types.LogLevel(level).IsValid() {
			return fmt.Errorf("invalid level %q", level)
		}

		if !follow {
			entries, err := client.Logs(cmd.Context(), args[0], tail, types.LogLevel(level))
			if err != nil {
				return err
			}
			for _, e := range entries {
				printLogEntry(e)
			}
			return nil
		}
		return followLogs(args[0])
	},
}

func init() {
	logsCmd.Flags().Int("tail", 100, "Number of historical entries to fetch")
	logsCmd.Flags().String("level", "", "Minimum level filter (debug, info, warning, error, critical)")
	logsCmd.Flags().BoolP("follow", "f", false, "Stream new entries as they arrive")
	rootCmd.AddCommand(logsCmd)
}

func followLogs(sessionID string) error {
	mgr := logstream.NewManager(logstream.Adapt(client), logstream.Config{
		BufferSize: cfg.LogBufferSize,
		SeedTail:   cfg.LogSeedTail,
	})

	sub, err := mgr.Subscribe(sessionID, printLogEntry)
	if err != nil {
		return err
	}
	defer mgr.Unsubscribe(sub)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}

func printLogEntry(e types.LogEntry) {
	levelColor := color.New(color.FgWhite).SprintFunc()
	switch e.Level {
	case types.LevelWarning:
		levelColor = color.New(color.FgYellow).SprintFunc()
	case types.LevelError, types.LevelCritical:
		levelColor = color.New(color.FgRed).SprintFunc()
	case types.LevelDebug:
		levelColor = color.New(color.FgHiBlack).SprintFunc()
	}
	fmt.Printf("%s %-8s %s\n",
		e.Timestamp.Format("15:04:05.000"),
		levelColor(string(e.Level)),
		e.Message)
}
