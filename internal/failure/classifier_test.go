package failure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/previewlabs/previewctl/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want types.FailureCategory
	}{
		{
			name: "port already taken",
			text: "Error: listen tcp 0.0.0.0:8080: bind: address already in use",
			want: types.CategoryPortBinding,
		},
		{
			name: "python missing module",
			text: "ModuleNotFoundError: No module named 'fastapi'",
			want: types.CategoryDependency,
		},
		{
			name: "node missing module",
			text: "Error: Cannot find module 'express'",
			want: types.CategoryDependency,
		},
		{
			name: "circular import",
			text: "ImportError: cannot import name 'models' from partially initialized module",
			want: types.CategoryImport,
		},
		{
			name: "python syntax error",
			text: "SyntaxError: invalid syntax (main.py, line 42)",
			want: types.CategorySyntax,
		},
		{
			name: "docker build failure",
			text: "docker build failed: step 5/9 returned a non-zero code",
			want: types.CategoryBuild,
		},
		{
			name: "oom kill",
			text: "container terminated: OOMKilled",
			want: types.CategoryResource,
		},
		{
			name: "deadline exceeded",
			text: "health probe failed: context deadline exceeded",
			want: types.CategoryTimeout,
		},
		{
			name: "connection refused",
			text: "dial tcp 10.0.0.7:5432: connect: connection refused",
			want: types.CategoryNetwork,
		},
		{
			name: "missing env var",
			text: "startup aborted: missing environment variable DATABASE_URL",
			want: types.CategoryConfig,
		},
		{
			name: "python traceback",
			text: "Traceback (most recent call last):\n  File \"main.py\", line 10",
			want: types.CategoryRuntime,
		},
		{
			name: "unrecognized",
			text: "something inexplicable happened",
			want: types.CategoryUnknown,
		},
		{
			name: "case insensitive",
			text: "SYNTAXERROR: unexpected token",
			want: types.CategorySyntax,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, suggestion := Classify(tt.text)
			assert.Equal(t, tt.want, category)
			assert.NotEmpty(t, suggestion, "every category carries remediation text")
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	text := "SyntaxError: invalid syntax"
	c1, s1 := Classify(text)
	c2, s2 := Classify(text)
	assert.Equal(t, c1, c2)
	assert.Equal(t, s1, s2)
}

func TestClassifyLogs(t *testing.T) {
	base := time.Now()
	entries := []types.LogEntry{
		{Timestamp: base, Level: types.LevelInfo, Message: "starting backend"},
		{Timestamp: base.Add(time.Second), Level: types.LevelInfo, Message: "installing dependencies"},
		{Timestamp: base.Add(2 * time.Second), Level: types.LevelError, Message: "dial tcp: connection refused"},
		{Timestamp: base.Add(3 * time.Second), Level: types.LevelCritical, Message: "SyntaxError: invalid syntax in app.py"},
	}

	failures := ClassifyLogs(entries)
	assert.Len(t, failures, 2)

	// Root causes rank above downstream symptoms: syntax before network
	assert.Equal(t, types.CategorySyntax, failures[0].Category)
	assert.Equal(t, types.CategoryNetwork, failures[1].Category)

	// Context lines include the preceding entries
	assert.Contains(t, failures[1].RelevantLogs, "installing dependencies")
	assert.Contains(t, failures[1].RelevantLogs, "dial tcp: connection refused")
}

func TestClassifyLogsIgnoresNonErrors(t *testing.T) {
	entries := []types.LogEntry{
		{Level: types.LevelDebug, Message: "SyntaxError mentioned in debug chatter"},
		{Level: types.LevelInfo, Message: "all good"},
		{Level: types.LevelWarning, Message: "connection refused once, retrying"},
	}
	assert.Empty(t, ClassifyLogs(entries))
}
