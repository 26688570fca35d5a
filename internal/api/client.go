// Package api implements the HTTP client for the preview orchestrator and
// observability endpoints. All calls are plain request/response except log
// streaming, which is a long-lived JSON-lines subscription (see stream.go).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/mod/semver"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/previewlabs/previewctl/internal/types"
)

// MinServerVersion is the oldest orchestrator release this client is known
// to work against. Older servers get a warning, not an error.
const MinServerVersion = "v0.4.0"

// Config holds API client configuration
type Config struct {
	// BaseURL is the orchestrator API base, e.g. "http://localhost:8100"
	BaseURL string

	// HTTPClient overrides the default HTTP client (useful for tests)
	HTTPClient *http.Client

	// RequestTimeout bounds each individual request
	// Default: 30s
	RequestTimeout time.Duration

	// MaxConcurrentRequests caps in-flight requests to the API base
	// Default: 8, 0 = unlimited
	MaxConcurrentRequests int64

	// PollRequestsPerSecond rate-limits idempotent GETs so that several
	// concurrent pollers cannot stampede the orchestrator
	// Default: 20
	PollRequestsPerSecond float64

	// Retry configures backoff and circuit breaking for idempotent GETs
	Retry RetryConfig
}

// DefaultConfig returns the default client configuration
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:               baseURL,
		RequestTimeout:        30 * time.Second,
		MaxConcurrentRequests: 8,
		PollRequestsPerSecond: 20,
		Retry:                 DefaultRetryConfig(),
	}
}

// Client is the concrete API client. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	retry   RetryConfig
	breaker *CircuitBreaker
}

// NewClient creates a new API client with the provided configuration
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL cannot be empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.PollRequestsPerSecond <= 0 {
		cfg.PollRequestsPerSecond = 20
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialBackoff == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.PollRequestsPerSecond), int(cfg.PollRequestsPerSecond)),
		retry:   cfg.Retry,
	}
	if cfg.MaxConcurrentRequests > 0 {
		c.sem = semaphore.NewWeighted(cfg.MaxConcurrentRequests)
	}
	if cfg.Retry.CircuitBreakerEnabled {
		c.breaker = NewCircuitBreaker(cfg.Retry.FailureThreshold, cfg.Retry.SuccessThreshold, cfg.Retry.OpenTimeout)
	}
	return c, nil
}

// StartRequest is the body of POST /api/preview/start
type StartRequest struct {
	ProjectName     string            `json:"project_name"`
	ProjectFiles    map[string]string `json:"project_files"`
	BackendFiles    map[string]string `json:"backend_files,omitempty"`
	UserID          string            `json:"user_id,omitempty"`
	TTLMinutes      int               `json:"ttl_minutes"`
	GenerateBackend bool              `json:"generate_backend"`
	// CorrelationID ties client-side telemetry to server-side traces
	CorrelationID string `json:"correlation_id,omitempty"`
}

// StartResponse is the body of a successful POST /api/preview/start
type StartResponse struct {
	SessionID      string `json:"session_id"`
	Status         string `json:"status"`
	BackendAddress string `json:"backend_address,omitempty"`
	ServerVersion  string `json:"server_version,omitempty"`
	Error          string `json:"error,omitempty"`
}

// VersionSupported reports whether the responding server meets
// MinServerVersion. Servers that don't report a version are assumed fine.
func (r *StartResponse) VersionSupported() bool {
	if r.ServerVersion == "" {
		return true
	}
	v := r.ServerVersion
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return true
	}
	return semver.Compare(v, MinServerVersion) >= 0
}

// HealthCheckResult is the body of GET /api/preview/health-check/{id}
type HealthCheckResult struct {
	Healthy        bool           `json:"healthy"`
	ResponseTimeMs float64        `json:"response_time_ms"`
	AuthConfig     map[string]any `json:"auth_config,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// ExtendResponse is the body of POST /api/cleanup/extend/{id}
type ExtendResponse struct {
	Success      bool   `json:"success"`
	ExpiresAt    string `json:"expires_at,omitempty"`
	TTLRemaining int    `json:"ttl_remaining_minutes,omitempty"`
	Error        string `json:"error,omitempty"`
}

// CleanupStatus is the body of GET /api/cleanup/status[/{id}]
type CleanupStatus struct {
	ActiveSessions int       `json:"active_sessions"`
	SessionID      string    `json:"session_id,omitempty"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
	CleanedUp      bool      `json:"cleaned_up"`
}

// StartPreview begins orchestration for a project. This is the one
// non-idempotent call that is never retried: a duplicate start would leak a
// container.
func (c *Client) StartPreview(ctx context.Context, req StartRequest) (*StartResponse, error) {
	var resp StartResponse
	if err := c.postJSON(ctx, "/api/preview/start", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches one orchestration progress snapshot
func (c *Client) Status(ctx context.Context, sessionID string) (*types.Progress, error) {
	var p types.Progress
	if err := c.getJSON(ctx, "/api/preview/status/"+url.PathEscape(sessionID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// HealthCheck performs a lightweight reachability probe
func (c *Client) HealthCheck(ctx context.Context, sessionID string) (*HealthCheckResult, error) {
	var r HealthCheckResult
	if err := c.getJSON(ctx, "/api/preview/health-check/"+url.PathEscape(sessionID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Cancel requests cancellation of in-flight orchestration
func (c *Client) Cancel(ctx context.Context, sessionID string) error {
	return c.postJSON(ctx, "/api/preview/cancel/"+url.PathEscape(sessionID), nil, nil)
}

// ReleaseContainer requests release of the session's container resources
func (c *Client) ReleaseContainer(ctx context.Context, sessionID, reason string) error {
	body := map[string]string{"session_id": sessionID, "reason": reason}
	return c.postJSON(ctx, "/api/cleanup/container", body, nil)
}

// ExtendTTL extends the session's time-to-live by the given minutes
func (c *Client) ExtendTTL(ctx context.Context, sessionID string, minutes int) (*ExtendResponse, error) {
	path := fmt.Sprintf("/api/cleanup/extend/%s?minutes=%d", url.PathEscape(sessionID), minutes)
	var r ExtendResponse
	if err := c.postJSON(ctx, path, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetCleanupStatus fetches TTL/cleanup status. sessionID may be empty for
// the global view.
func (c *Client) GetCleanupStatus(ctx context.Context, sessionID string) (*CleanupStatus, error) {
	path := "/api/cleanup/status"
	if sessionID != "" {
		path += "/" + url.PathEscape(sessionID)
	}
	var s CleanupStatus
	if err := c.getJSON(ctx, path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Logs fetches the most recent log entries for a session. tail <= 0 uses
// the server default; level filters to at-or-above the given severity.
func (c *Client) Logs(ctx context.Context, sessionID string, tail int, level types.LogLevel) ([]types.LogEntry, error) {
	q := url.Values{}
	if tail > 0 {
		q.Set("tail", fmt.Sprintf("%d", tail))
	}
	if level != "" {
		q.Set("level", string(level))
	}
	path := "/api/observability/logs/" + url.PathEscape(sessionID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var entries []types.LogEntry
	if err := c.getJSON(ctx, path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Health fetches the full health metrics snapshot for a session
func (c *Client) Health(ctx context.Context, sessionID string) (*types.HealthMetrics, error) {
	var m types.HealthMetrics
	if err := c.getJSON(ctx, "/api/observability/health/"+url.PathEscape(sessionID), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Failures fetches the categorized startup failures for a session
func (c *Client) Failures(ctx context.Context, sessionID string) ([]types.StartupFailure, error) {
	var fs []types.StartupFailure
	if err := c.getJSON(ctx, "/api/observability/failures/"+url.PathEscape(sessionID), &fs); err != nil {
		return nil, err
	}
	return fs, nil
}

// AnalyzeFailures requests server-side root-cause analysis for a session
func (c *Client) AnalyzeFailures(ctx context.Context, sessionID string) (*types.FailureAnalysis, error) {
	var a types.FailureAnalysis
	if err := c.getJSON(ctx, "/api/observability/failures/"+url.PathEscape(sessionID)+"/analyze", &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Snapshot fetches combined health, logs, failures and timeline in one call
func (c *Client) Snapshot(ctx context.Context, sessionID string) (*types.Snapshot, error) {
	var s types.Snapshot
	if err := c.getJSON(ctx, "/api/observability/snapshot/"+url.PathEscape(sessionID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSession discards server-side observability buffers for a session
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/observability/session/"+url.PathEscape(sessionID), nil, nil)
}

// getJSON performs an idempotent GET with rate limiting, retry and circuit
// breaking.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return withRetry(ctx, c.retry, c.breaker, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.do(ctx, http.MethodGet, path, nil, out)
	})
}

// postJSON performs a POST. POSTs are not retried: none of the write
// endpoints are guaranteed idempotent server-side.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer c.sem.Release(1)
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			Code:     resp.StatusCode,
			Message:  readErrorMessage(resp.Body),
			Endpoint: path,
		}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// readErrorMessage extracts a server error message from a non-2xx body.
// The orchestrator returns {"error": "..."} but proxies in between may not.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		switch {
		case payload.Error != "":
			return payload.Error
		case payload.Message != "":
			return payload.Message
		case payload.Detail != "":
			return payload.Detail
		}
	}
	return strings.TrimSpace(string(data))
}
