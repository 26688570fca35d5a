package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/previewlabs/previewctl/internal/failure"
)

var failuresCmd = &cobra.Command{
	Use:   "failures <session-id>",
	Short: "Show categorized startup failures",
	Long: `Show the categorized startup failures detected for a session,
ranked with likely root causes first.

With --analyze, a root-cause analysis with numbered remediation steps is
requested. The analysis endpoint is only called when failures exist.

Examples:
  previewctl failures sess-7f3a
  previewctl failures sess-7f3a --analyze`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		analyze, _ := cmd.Flags().GetBool("analyze")
		analyzer := failure.NewAnalyzer(client)

		if analyze {
			return runAnalyze(cmd, analyzer, args[0])
		}

		failures, err := analyzer.GetFailures(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(failures) == 0 {
			fmt.Println("no startup failures detected")
			return nil
		}

		red := color.New(color.FgRed).SprintFunc()
		for _, f := range failures {
			fmt.Printf("%s %s\n", red(string(f.Category)), f.Message)
			if f.Suggestion != "" {
				fmt.Printf("  → %s\n", f.Suggestion)
			}
		}
		return nil
	},
}

func init() {
	failuresCmd.Flags().Bool("analyze", false, "Request root-cause analysis with remediation steps")
	rootCmd.AddCommand(failuresCmd)
}

func runAnalyze(cmd *cobra.Command, analyzer *failure.Analyzer, sessionID string) error {
	analysis, err := analyzer.Analyze(cmd.Context(), sessionID)
	if err != nil {
		return err
	}
	if !analysis.HasFailure {
		fmt.Println("no startup failures detected")
		return nil
	}

	red := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	f := analysis.Failure
	fmt.Printf("%s %s\n", red(string(f.Category)), f.Message)
	if f.Details != "" {
		fmt.Printf("  %s\n", f.Details)
	}
	if len(analysis.ActionableSteps) > 0 {
		fmt.Printf("\n%s\n", bold("Suggested steps:"))
		for i, step := range analysis.ActionableSteps {
			fmt.Printf("  %d. %s\n", i+1, step)
		}
	}
	if flagVerbose && f.Traceback != "" {
		fmt.Printf("\n%s\n%s\n", bold("Traceback:"), f.Traceback)
	}
	return nil
}
