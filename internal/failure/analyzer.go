package failure

import (
	"context"
	"fmt"

	"github.com/previewlabs/previewctl/internal/types"
)

// Client is the subset of the API client the analyzer needs
type Client interface {
	Failures(ctx context.Context, sessionID string) ([]types.StartupFailure, error)
	AnalyzeFailures(ctx context.Context, sessionID string) (*types.FailureAnalysis, error)
	Logs(ctx context.Context, sessionID string, tail int, level types.LogLevel) ([]types.LogEntry, error)
}

// Analyzer fetches categorized failures and root-cause analysis, falling
// back to the local classifier when the observability API is unreachable.
type Analyzer struct {
	client Client
}

// NewAnalyzer creates a failure analyzer backed by the given API client
func NewAnalyzer(client Client) *Analyzer {
	return &Analyzer{client: client}
}

// GetFailures returns the ranked failure list for a session. Server-side
// categorization is authoritative; when it cannot be reached, recent error
// logs are classified locally instead.
func (a *Analyzer) GetFailures(ctx context.Context, sessionID string) ([]types.StartupFailure, error) {
	failures, err := a.client.Failures(ctx, sessionID)
	if err == nil {
		rank(failures)
		return failures, nil
	}

	entries, logErr := a.client.Logs(ctx, sessionID, 100, types.LevelError)
	if logErr != nil {
		return nil, fmt.Errorf("failed to fetch failures: %w", err)
	}
	return ClassifyLogs(entries), nil
}

// Analyze produces a failure analysis for a session. The failures list is
// checked first: when it is empty the analysis endpoint is never called and
// a no-failure result is returned, saving the round-trip.
func (a *Analyzer) Analyze(ctx context.Context, sessionID string) (*types.FailureAnalysis, error) {
	failures, err := a.GetFailures(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(failures) == 0 {
		return &types.FailureAnalysis{HasFailure: false}, nil
	}

	analysis, err := a.client.AnalyzeFailures(ctx, sessionID)
	if err == nil {
		return analysis, nil
	}

	// Server analysis unavailable: synthesize one from the top-ranked
	// failure so the caller still gets actionable text.
	top := failures[0]
	return &types.FailureAnalysis{
		HasFailure:      true,
		Failure:         &top,
		ActionableSteps: actionableSteps(top),
	}, nil
}

// actionableSteps turns one failure into an ordered remediation list
func actionableSteps(f types.StartupFailure) []string {
	steps := []string{}
	if f.Suggestion != "" {
		steps = append(steps, f.Suggestion)
	}
	switch f.Category {
	case types.CategorySyntax, types.CategoryImport, types.CategoryBuild:
		steps = append(steps, "Regenerate the project to replace the failing files.")
	case types.CategoryDependency:
		steps = append(steps, "Add the missing package to the project's dependency manifest.")
	case types.CategoryPortBinding, types.CategoryResource:
		steps = append(steps, "Cancel this preview and start a new one to get a fresh container.")
	case types.CategoryTimeout, types.CategoryNetwork:
		steps = append(steps, "Retry the preview; transient infrastructure issues usually clear on the next attempt.")
	}
	steps = append(steps, "If the failure persists, review the full session logs.")
	return steps
}
