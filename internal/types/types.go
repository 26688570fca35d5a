package types

import (
	"fmt"
	"time"
)

// Stage represents a step in the sandbox readiness pipeline.
// Stages advance strictly in pipeline order; Ready and Failed are terminal.
type Stage string

const (
	StagePending            Stage = "pending"
	StageGeneratingBackend  Stage = "generating_backend"
	StageBuildingImage      Stage = "building_image"
	StageDeployingContainer Stage = "deploying_container"
	StageWaitingForHealth   Stage = "waiting_for_health"
	StageBackendReady       Stage = "backend_ready"
	StagePreparingFrontend  Stage = "preparing_frontend"
	StageReady              Stage = "ready"
	StageFailed             Stage = "failed"
)

// IsValid checks if the stage value is valid
func (s Stage) IsValid() bool {
	switch s {
	case StagePending, StageGeneratingBackend, StageBuildingImage,
		StageDeployingContainer, StageWaitingForHealth, StageBackendReady,
		StagePreparingFrontend, StageReady, StageFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further stage transitions can occur
func (s Stage) IsTerminal() bool {
	return s == StageReady || s == StageFailed
}

// HealthState represents the observed health of a running sandbox backend
type HealthState string

const (
	HealthUnknown   HealthState = "unknown"
	HealthStarting  HealthState = "starting"
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
	HealthFailed    HealthState = "failed"
)

// IsValid checks if the health state value is valid
func (s HealthState) IsValid() bool {
	switch s {
	case HealthUnknown, HealthStarting, HealthHealthy, HealthDegraded,
		HealthUnhealthy, HealthFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the backend can never recover from this state
func (s HealthState) IsTerminal() bool {
	return s == HealthFailed
}

// LogLevel is the severity of a single sandbox log line
type LogLevel string

const (
	LevelDebug    LogLevel = "debug"
	LevelInfo     LogLevel = "info"
	LevelWarning  LogLevel = "warning"
	LevelError    LogLevel = "error"
	LevelCritical LogLevel = "critical"
)

// IsValid checks if the log level value is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical:
		return true
	}
	return false
}

// FailureCategory classifies a sandbox startup failure.
// The taxonomy is fixed; unrecognized failures map to CategoryUnknown.
type FailureCategory string

const (
	CategoryBuild       FailureCategory = "build_error"
	CategoryDependency  FailureCategory = "dependency_error"
	CategoryImport      FailureCategory = "import_error"
	CategorySyntax      FailureCategory = "syntax_error"
	CategoryRuntime     FailureCategory = "runtime_error"
	CategoryPortBinding FailureCategory = "port_binding_error"
	CategoryTimeout     FailureCategory = "timeout_error"
	CategoryNetwork     FailureCategory = "network_error"
	CategoryResource    FailureCategory = "resource_error"
	CategoryConfig      FailureCategory = "config_error"
	CategoryUnknown     FailureCategory = "unknown_error"
)

// IsValid checks if the failure category value is valid
func (c FailureCategory) IsValid() bool {
	switch c {
	case CategoryBuild, CategoryDependency, CategoryImport, CategorySyntax,
		CategoryRuntime, CategoryPortBinding, CategoryTimeout, CategoryNetwork,
		CategoryResource, CategoryConfig, CategoryUnknown:
		return true
	}
	return false
}

// Session identifies one sandbox lifecycle instance.
// It is created by StartPreview and mutated only by the orchestrator
// and the cleanup manager.
type Session struct {
	// ID is the opaque session identifier assigned by the remote orchestrator
	ID string `json:"session_id"`
	// Stage is the last observed orchestration stage
	Stage Stage `json:"stage"`
	// BackendAddress is set only once Stage == ready
	BackendAddress string `json:"backend_address,omitempty"`
	// MockMode is true when orchestration failed and the consumer must not
	// expect a real backend
	MockMode bool `json:"mock_mode"`
	// CreatedAt is when the session was started client-side
	CreatedAt time.Time `json:"created_at"`
	// TTLMinutes is the time-to-live requested at start
	TTLMinutes int `json:"ttl_minutes"`
}

// Progress is a snapshot of orchestration progress emitted during polling
type Progress struct {
	SessionID       string         `json:"session_id"`
	Stage           Stage          `json:"stage"`
	StageProgress   int            `json:"stage_progress"`
	OverallProgress int            `json:"overall_progress"`
	Message         string         `json:"message"`
	Error           string         `json:"error,omitempty"`
	BackendURL      string         `json:"backend_url,omitempty"`
	BackendConfig   map[string]any `json:"backend_config,omitempty"`
}

// Validate checks if the progress snapshot has valid field values
func (p *Progress) Validate() error {
	if !p.Stage.IsValid() {
		return fmt.Errorf("invalid stage: %s", p.Stage)
	}
	if p.StageProgress < 0 || p.StageProgress > 100 {
		return fmt.Errorf("stage_progress must be between 0 and 100 (got %d)", p.StageProgress)
	}
	if p.OverallProgress < 0 || p.OverallProgress > 100 {
		return fmt.Errorf("overall_progress must be between 0 and 100 (got %d)", p.OverallProgress)
	}
	return nil
}

// HealthChecks aggregates probe counts for one session
type HealthChecks struct {
	Total       int     `json:"total"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// LastCheck describes the most recent health probe
type LastCheck struct {
	Time           time.Time `json:"time"`
	ResponseTimeMs float64   `json:"response_time_ms"`
}

// Resources reports container resource usage. Absent when the runtime
// cannot report them.
type Resources struct {
	MemoryMB   float64 `json:"memory_mb"`
	CPUPercent float64 `json:"cpu_percent"`
}

// HealthMetrics is a health snapshot for one session
type HealthMetrics struct {
	SessionID         string       `json:"session_id"`
	State             HealthState  `json:"state"`
	UptimeSeconds     float64      `json:"uptime_seconds"`
	HealthChecks      HealthChecks `json:"health_checks"`
	LastCheck         *LastCheck   `json:"last_check,omitempty"`
	AvgResponseTimeMs float64      `json:"avg_response_time_ms"`
	Resources         *Resources   `json:"resources,omitempty"`
	RestartCount      int          `json:"restart_count"`
	// Errors is a bounded ring of recent error lines, most recent last
	Errors []string `json:"errors,omitempty"`
}

// LogEntry is one structured log line from a running sandbox
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
	SessionID string    `json:"session_id"`
}

// DedupKey returns the identity used to suppress redelivered entries.
// Two entries with the same timestamp and message are treated as the same
// event replayed across a stream reconnect. Known limitation: two genuinely
// distinct lines that share both fields (e.g. a heartbeat repeated within
// the same millisecond) collapse into one.
func (e LogEntry) DedupKey() string {
	return e.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + e.Message
}

// StartupFailure is one detected and categorized sandbox startup failure
type StartupFailure struct {
	Category     FailureCategory `json:"category"`
	Message      string          `json:"message"`
	Details      string          `json:"details,omitempty"`
	Suggestion   string          `json:"suggestion,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	RelevantLogs []string        `json:"relevant_logs,omitempty"`
	Traceback    string          `json:"traceback,omitempty"`
}

// FailureAnalysis is the result of root-cause analysis for one session
type FailureAnalysis struct {
	HasFailure bool `json:"has_failure"`
	// Failure is the highest-ranked failure, nil when HasFailure is false
	Failure *StartupFailure `json:"failure,omitempty"`
	// ActionableSteps is an ordered list of remediation instructions
	ActionableSteps []string `json:"actionable_steps,omitempty"`
}

// TimelineEvent is one entry in a session's observability timeline
type TimelineEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Detail    string    `json:"detail,omitempty"`
}

// Snapshot combines health, recent logs, failures and timeline in one fetch
type Snapshot struct {
	SessionID string           `json:"session_id"`
	Health    *HealthMetrics   `json:"health,omitempty"`
	Logs      []LogEntry       `json:"logs,omitempty"`
	Failures  []StartupFailure `json:"failures,omitempty"`
	Timeline  []TimelineEvent  `json:"timeline,omitempty"`
}
