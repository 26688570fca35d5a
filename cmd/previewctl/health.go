package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/previewlabs/previewctl/internal/failure"
	"github.com/previewlabs/previewctl/internal/health"
	"github.com/previewlabs/previewctl/internal/types"
)

var healthCmd = &cobra.Command{
	Use:   "health <session-id>",
	Short: "Show sandbox health telemetry",
	Long: `Show the health snapshot for a session: state, uptime, probe
success rate, response times and resource usage.

With --wait, polls until the backend reports healthy (or fails), showing
each observed state.

Examples:
  previewctl health sess-7f3a
  previewctl health sess-7f3a --wait --timeout 2m`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetBool("wait")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		analyzer := failure.NewAnalyzer(client)
		poller := health.NewPoller(client, analyzer)

		if !wait {
			metrics, err := poller.GetHealth(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printHealth(metrics)
			return nil
		}

		var lastState types.HealthState
		metrics, err := poller.WaitForHealthy(cmd.Context(), args[0], health.WaitOptions{
			Timeout:  timeout,
			Interval: 2 * time.Second,
			OnUpdate: func(m *types.HealthMetrics) {
				if m.State != lastState {
					lastState = m.State
					fmt.Printf("  %s %s\n", time.Now().Format("15:04:05"), m.State)
				}
			},
		})
		if err != nil {
			return err
		}
		printHealth(metrics)
		return nil
	},
}

func init() {
	healthCmd.Flags().Bool("wait", false, "Poll until the backend is healthy")
	healthCmd.Flags().Duration("timeout", 2*time.Minute, "Deadline for --wait")
	rootCmd.AddCommand(healthCmd)
}

func printHealth(m *types.HealthMetrics) {
	fmt.Printf("state:         %s\n", healthColor(m.State)(string(m.State)))
	fmt.Printf("uptime:        %.0fs\n", m.UptimeSeconds)
	fmt.Printf("checks:        %d total, %d failed (%.0f%% ok)\n",
		m.HealthChecks.Total, m.HealthChecks.Failed, m.HealthChecks.SuccessRate*100)
	fmt.Printf("avg response:  %.1fms\n", m.AvgResponseTimeMs)
	if m.LastCheck != nil {
		fmt.Printf("last check:    %s (%.1fms)\n",
			m.LastCheck.Time.Format(time.RFC3339), m.LastCheck.ResponseTimeMs)
	}
	if m.Resources != nil {
		fmt.Printf("resources:     %.0f MB, %.1f%% cpu\n", m.Resources.MemoryMB, m.Resources.CPUPercent)
	}
	if m.RestartCount > 0 {
		fmt.Printf("restarts:      %d\n", m.RestartCount)
	}
	for _, errLine := range m.Errors {
		fmt.Printf("  error: %s\n", errLine)
	}
}

func healthColor(s types.HealthState) func(...interface{}) string {
	switch s {
	case types.HealthHealthy:
		return color.New(color.FgGreen).SprintFunc()
	case types.HealthDegraded, types.HealthStarting:
		return color.New(color.FgYellow).SprintFunc()
	case types.HealthUnhealthy, types.HealthFailed:
		return color.New(color.FgRed).SprintFunc()
	default:
		return color.New(color.FgWhite).SprintFunc()
	}
}
