// Package failure classifies sandbox startup failures and produces
// actionable analysis. The classifier mirrors the server-side taxonomy so
// client-only deployments degrade gracefully when the observability API is
// unreachable.
package failure

import (
	"sort"
	"strings"

	"github.com/previewlabs/previewctl/internal/types"
)

// rule maps log text markers to a failure category with remediation text.
// Rules are evaluated in order; the first match wins, so more specific
// markers come first.
type rule struct {
	markers    []string
	category   types.FailureCategory
	suggestion string
}

var rules = []rule{
	{
		markers:    []string{"address already in use", "bind: permission denied", "port is already allocated", "eaddrinuse"},
		category:   types.CategoryPortBinding,
		suggestion: "The backend port is already taken inside the sandbox. Restart the preview to get a fresh container, or change the port your server binds to.",
	},
	{
		markers:    []string{"modulenotfounderror", "cannot find module", "no module named", "package not found", "could not resolve dependency", "unable to resolve dependency"},
		category:   types.CategoryDependency,
		suggestion: "A required dependency is missing. Check that every imported package is declared in your project's dependency manifest and regenerate the preview.",
	},
	{
		markers:    []string{"importerror", "cannot import name", "circular import", "import cycle"},
		category:   types.CategoryImport,
		suggestion: "An import could not be resolved. Verify the module path and look for circular imports between generated files.",
	},
	{
		markers:    []string{"syntaxerror", "syntax error", "unexpected token", "invalid syntax", "unexpected indent"},
		category:   types.CategorySyntax,
		suggestion: "The generated code has a syntax error. Regenerate the affected file; if it persists, report the file named in the error.",
	},
	{
		markers:    []string{"build failed", "compilation failed", "compile error", "docker build", "cannot load", "undefined:"},
		category:   types.CategoryBuild,
		suggestion: "The image build failed. Inspect the build log lines above the error for the first failing step.",
	},
	{
		markers:    []string{"out of memory", "oomkilled", "memory limit", "no space left on device", "resource temporarily unavailable", "disk quota exceeded"},
		category:   types.CategoryResource,
		suggestion: "The sandbox ran out of resources. Reduce the project's memory footprint or retry; heavy startup work may need to be deferred.",
	},
	{
		markers:    []string{"timed out", "timeout", "deadline exceeded", "context deadline"},
		category:   types.CategoryTimeout,
		suggestion: "An operation exceeded its deadline. Retry the preview; if it keeps timing out, the backend may be doing too much work at startup.",
	},
	{
		markers:    []string{"connection refused", "connection reset", "no such host", "dns", "network is unreachable", "econnrefused"},
		category:   types.CategoryNetwork,
		suggestion: "A network call from the sandbox failed. External services may be unreachable from the preview environment; guard startup code against them.",
	},
	{
		markers:    []string{"missing environment variable", "config not found", "invalid configuration", "configuration error", "env var", "is not set"},
		category:   types.CategoryConfig,
		suggestion: "The backend is missing configuration. Preview sandboxes only receive generated config; remove references to environment variables that are not provisioned.",
	},
	{
		markers:    []string{"traceback", "panic:", "exception", "uncaught", "fatal error", "segmentation fault"},
		category:   types.CategoryRuntime,
		suggestion: "The backend crashed at runtime. Read the traceback for the failing call; the first frame inside your project is usually the culprit.",
	},
}

// Classify maps raw log or error text to a failure category and human
// remediation string. Pure and stateless; unrecognized text maps to
// unknown_error.
func Classify(text string) (types.FailureCategory, string) {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, marker := range r.markers {
			if strings.Contains(lower, marker) {
				return r.category, r.suggestion
			}
		}
	}
	return types.CategoryUnknown, "The failure did not match a known pattern. Inspect the session logs for the first error line."
}

// categoryRank orders failures for presentation: causes before symptoms.
// A syntax error that prevents the build matters more than the network
// timeout it produced downstream.
var categoryRank = map[types.FailureCategory]int{
	types.CategorySyntax:      0,
	types.CategoryImport:      1,
	types.CategoryDependency:  2,
	types.CategoryBuild:       3,
	types.CategoryConfig:      4,
	types.CategoryPortBinding: 5,
	types.CategoryResource:    6,
	types.CategoryRuntime:     7,
	types.CategoryNetwork:     8,
	types.CategoryTimeout:     9,
	types.CategoryUnknown:     10,
}

// ClassifyLogs builds categorized failures from raw log entries, the local
// backstop used when the server-side failure list is unreachable. Only
// error and critical lines are considered.
func ClassifyLogs(entries []types.LogEntry) []types.StartupFailure {
	var failures []types.StartupFailure
	for i, entry := range entries {
		if entry.Level != types.LevelError && entry.Level != types.LevelCritical {
			continue
		}
		category, suggestion := Classify(entry.Message)
		failures = append(failures, types.StartupFailure{
			Category:     category,
			Message:      entry.Message,
			Suggestion:   suggestion,
			Timestamp:    entry.Timestamp,
			RelevantLogs: contextLines(entries, i, 3),
		})
	}
	rank(failures)
	return failures
}

// contextLines returns up to n messages preceding entries[i], plus the
// line itself.
func contextLines(entries []types.LogEntry, i, n int) []string {
	start := i - n
	if start < 0 {
		start = 0
	}
	lines := make([]string, 0, i-start+1)
	for _, e := range entries[start : i+1] {
		lines = append(lines, e.Message)
	}
	return lines
}

// rank sorts failures so the most likely root cause comes first, breaking
// ties by recency (newest first).
func rank(failures []types.StartupFailure) {
	sort.SliceStable(failures, func(i, j int) bool {
		ri, rj := categoryRank[failures[i].Category], categoryRank[failures[j].Category]
		if ri != rj {
			return ri < rj
		}
		return failures[i].Timestamp.After(failures[j].Timestamp)
	})
}
