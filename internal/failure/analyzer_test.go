package failure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/previewlabs/previewctl/internal/types"
)

type fakeFailureClient struct {
	failures    []types.StartupFailure
	failuresErr error

	analysis     *types.FailureAnalysis
	analysisErr  error
	analyzeCalls int

	logs    []types.LogEntry
	logsErr error
}

func (f *fakeFailureClient) Failures(ctx context.Context, sessionID string) ([]types.StartupFailure, error) {
	return f.failures, f.failuresErr
}

func (f *fakeFailureClient) AnalyzeFailures(ctx context.Context, sessionID string) (*types.FailureAnalysis, error) {
	f.analyzeCalls++
	return f.analysis, f.analysisErr
}

func (f *fakeFailureClient) Logs(ctx context.Context, sessionID string, tail int, level types.LogLevel) ([]types.LogEntry, error) {
	return f.logs, f.logsErr
}

func TestAnalyzeNoFailuresSkipsServerAnalysis(t *testing.T) {
	client := &fakeFailureClient{failures: nil}
	a := NewAnalyzer(client)

	analysis, err := a.Analyze(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, analysis.HasFailure)
	assert.Nil(t, analysis.Failure)
	assert.Equal(t, 0, client.analyzeCalls, "analysis must not be invoked speculatively")
}

func TestAnalyzeUsesServerAnalysis(t *testing.T) {
	serverAnalysis := &types.FailureAnalysis{
		HasFailure:      true,
		Failure:         &types.StartupFailure{Category: types.CategoryBuild, Message: "build failed"},
		ActionableSteps: []string{"fix the Dockerfile"},
	}
	client := &fakeFailureClient{
		failures: []types.StartupFailure{{Category: types.CategoryBuild, Message: "build failed"}},
		analysis: serverAnalysis,
	}
	a := NewAnalyzer(client)

	analysis, err := a.Analyze(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, serverAnalysis, analysis)
	assert.Equal(t, 1, client.analyzeCalls)
}

func TestAnalyzeFallsBackWhenServerAnalysisUnavailable(t *testing.T) {
	client := &fakeFailureClient{
		failures: []types.StartupFailure{{
			Category:   types.CategoryDependency,
			Message:    "No module named 'fastapi'",
			Suggestion: "add the package to requirements",
		}},
		analysisErr: errors.New("connection refused"),
	}
	a := NewAnalyzer(client)

	analysis, err := a.Analyze(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, analysis.HasFailure)
	require.NotNil(t, analysis.Failure)
	assert.Equal(t, types.CategoryDependency, analysis.Failure.Category)
	assert.NotEmpty(t, analysis.ActionableSteps)
	assert.Equal(t, "add the package to requirements", analysis.ActionableSteps[0])
}

func TestGetFailuresRanksServerList(t *testing.T) {
	base := time.Now()
	client := &fakeFailureClient{
		failures: []types.StartupFailure{
			{Category: types.CategoryTimeout, Timestamp: base.Add(2 * time.Second)},
			{Category: types.CategorySyntax, Timestamp: base},
		},
	}
	a := NewAnalyzer(client)

	failures, err := a.GetFailures(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.Equal(t, types.CategorySyntax, failures[0].Category,
		"root causes rank above downstream symptoms")
}

func TestGetFailuresLocalBackstop(t *testing.T) {
	client := &fakeFailureClient{
		failuresErr: errors.New("connection refused"),
		logs: []types.LogEntry{
			{Timestamp: time.Now(), Level: types.LevelError, Message: "bind: address already in use"},
		},
	}
	a := NewAnalyzer(client)

	failures, err := a.GetFailures(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, types.CategoryPortBinding, failures[0].Category)
}

func TestGetFailuresBothSourcesDown(t *testing.T) {
	client := &fakeFailureClient{
		failuresErr: errors.New("connection refused"),
		logsErr:     errors.New("connection refused"),
	}
	a := NewAnalyzer(client)

	_, err := a.GetFailures(context.Background(), "sess-1")
	assert.Error(t, err)
}
