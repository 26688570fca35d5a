// Package orchestrator drives the staged readiness protocol for preview
// sandboxes: start, poll until ready, wire the backend address into the
// consumer, and fall back to mock mode when the infrastructure cannot
// deliver a real backend.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/previewlabs/previewctl/internal/api"
	"github.com/previewlabs/previewctl/internal/types"
)

// ErrOrchestrationFailed indicates the remote process legitimately reported
// the failed terminal stage
var ErrOrchestrationFailed = errors.New("orchestration failed")

// ErrOrchestrationTimeout indicates the local deadline elapsed before a
// terminal stage was reached
var ErrOrchestrationTimeout = errors.New("orchestration timed out")

// ErrUnknownSession indicates the session is not in this orchestrator's
// registry
var ErrUnknownSession = errors.New("unknown session")

// Client is the subset of the API client the orchestrator needs
type Client interface {
	StartPreview(ctx context.Context, req api.StartRequest) (*api.StartResponse, error)
	Status(ctx context.Context, sessionID string) (*types.Progress, error)
	Cancel(ctx context.Context, sessionID string) error
	ReleaseContainer(ctx context.Context, sessionID, reason string) error
}

// ProgressFunc receives every progress update
type ProgressFunc func(stage types.Stage, overallProgress int, message string)

// StageChangeFunc receives an update only when the stage differs from the
// previous emission
type StageChangeFunc func(stage types.Stage, message string)

// StartResult is the outcome of StartPreview. Exactly one of Session-with-
// real-backend or mock fallback holds; StartPreview never returns an error.
type StartResult struct {
	// Session is always non-nil; in mock mode it carries a client-assigned
	// ID and MockMode true
	Session *types.Session
	// MockReason is non-empty iff the result is a mock fallback
	MockReason string
	// VersionWarning is set when the server is older than this client
	// supports; the preview still proceeds
	VersionWarning string
}

// OK reports whether a real backend was wired up
func (r StartResult) OK() bool {
	return !r.Session.MockMode
}

// StartOptions configures one StartPreview call
type StartOptions struct {
	ProjectName     string
	ProjectFiles    map[string]string
	BackendFiles    map[string]string
	UserID          string
	TTLMinutes      int
	GenerateBackend bool

	// PollInterval is the status polling cadence (default: 2s)
	PollInterval time.Duration
	// MaxWait bounds the whole readiness wait (default: 5m)
	MaxWait time.Duration

	// OnProgress is invoked on every progress update
	OnProgress ProgressFunc
	// OnStageChange is invoked only when the stage changes
	OnStageChange StageChangeFunc
}

// PollOptions configures one PollStatus call
type PollOptions struct {
	// Interval is the polling cadence (default: 2s)
	Interval time.Duration
	// MaxWait bounds the wait (default: 5m)
	MaxWait time.Duration

	OnProgress    ProgressFunc
	OnStageChange StageChangeFunc
}

// sessionState wraps a session with the bookkeeping the poller needs to
// enforce the monotonic-progress contract and stage-change dedup.
type sessionState struct {
	session *types.Session
	// maxOverall is the highest overall progress forwarded so far;
	// non-monotonic server updates are clamped to it
	maxOverall int
	// lastStage is the stage of the previous emission
	lastStage types.Stage
}

// Orchestrator coordinates preview sessions against one API base. Each
// instance owns its session registry and backend-address slot, so multiple
// independent orchestrators can coexist in one process.
type Orchestrator struct {
	client Client

	mu       sync.RWMutex
	sessions map[string]*sessionState
	// backendAddress is the single mutable slot consumed by the generated
	// preview. Last writer wins; cleared unconditionally on cancel/cleanup.
	backendAddress string
}

// New creates a new orchestrator backed by the given API client
func New(client Client) *Orchestrator {
	return &Orchestrator{
		client:   client,
		sessions: make(map[string]*sessionState),
	}
}

// BackendAddress returns the current sandbox backend address, or "" when no
// real backend is wired up
func (o *Orchestrator) BackendAddress() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.backendAddress
}

// Session returns the registered session with the given ID, or nil
func (o *Orchestrator) Session(sessionID string) *types.Session {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st, ok := o.sessions[sessionID]
	if !ok {
		return nil
	}
	s := *st.session
	return &s
}

// Remove drops a session from the registry. Called by the cleanup path
// after terminal release.
func (o *Orchestrator) Remove(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.sessions, sessionID)
}

// StartPreview issues the start request and drives the readiness protocol
// to completion. It never returns an error: any failure, transport or
// orchestration, produces a mock fallback so preview UIs can proceed in a
// degraded mode instead of blocking on sandbox infrastructure.
func (o *Orchestrator) StartPreview(ctx context.Context, opts StartOptions) StartResult {
	if opts.TTLMinutes <= 0 {
		opts.TTLMinutes = 30
	}

	req := api.StartRequest{
		ProjectName:     opts.ProjectName,
		ProjectFiles:    opts.ProjectFiles,
		BackendFiles:    opts.BackendFiles,
		UserID:          opts.UserID,
		TTLMinutes:      opts.TTLMinutes,
		GenerateBackend: opts.GenerateBackend,
		CorrelationID:   uuid.New().String(),
	}

	resp, err := o.client.StartPreview(ctx, req)
	if err != nil {
		return o.mockFallback(opts, fmt.Sprintf("start request failed: %v", err))
	}
	if resp.SessionID == "" {
		reason := resp.Error
		if reason == "" {
			reason = "orchestrator returned no session id"
		}
		return o.mockFallback(opts, reason)
	}

	session := &types.Session{
		ID:         resp.SessionID,
		Stage:      types.StagePending,
		CreatedAt:  time.Now(),
		TTLMinutes: opts.TTLMinutes,
	}
	o.mu.Lock()
	o.sessions[session.ID] = &sessionState{session: session}
	o.mu.Unlock()

	result := StartResult{Session: session}
	if !resp.VersionSupported() {
		result.VersionWarning = fmt.Sprintf(
			"orchestrator version %s is older than the minimum supported %s",
			resp.ServerVersion, api.MinServerVersion)
	}

	progress, err := o.PollStatus(ctx, session.ID, PollOptions{
		Interval:      opts.PollInterval,
		MaxWait:       opts.MaxWait,
		OnProgress:    opts.OnProgress,
		OnStageChange: opts.OnStageChange,
	})
	if err != nil {
		// The remote session did start; free its container promptly
		// instead of abandoning it to the TTL. The poll deadline may
		// already be spent, so the cancel gets a short detached context.
		cancelCtx, release := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		_ = o.client.Cancel(cancelCtx, session.ID)
		release()
		o.Remove(session.ID)

		res := o.mockFallback(opts, err.Error())
		res.VersionWarning = result.VersionWarning
		return res
	}

	addr := progress.BackendURL
	if addr == "" {
		addr = resp.BackendAddress
	}

	o.mu.Lock()
	session.Stage = types.StageReady
	session.BackendAddress = addr
	o.backendAddress = addr
	o.mu.Unlock()

	return result
}

// mockFallback records a degraded session so downstream consumers still
// have something to key their state by.
func (o *Orchestrator) mockFallback(opts StartOptions, reason string) StartResult {
	session := &types.Session{
		ID:         "mock-" + uuid.New().String(),
		Stage:      types.StageFailed,
		MockMode:   true,
		CreatedAt:  time.Now(),
		TTLMinutes: opts.TTLMinutes,
	}
	o.mu.Lock()
	o.sessions[session.ID] = &sessionState{session: session, lastStage: types.StageFailed}
	o.mu.Unlock()
	return StartResult{Session: session, MockReason: reason}
}

// PollStatus polls the orchestration status at a fixed interval until the
// session reaches a terminal stage or MaxWait elapses. The returned
// snapshot is the terminal one. Failed terminal stages return
// ErrOrchestrationFailed wrapped with the server-supplied message; deadline
// expiry returns ErrOrchestrationTimeout.
func (o *Orchestrator) PollStatus(ctx context.Context, sessionID string, opts PollOptions) (*types.Progress, error) {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 5 * time.Minute
	}

	o.mu.RLock()
	_, known := o.sessions[sessionID]
	o.mu.RUnlock()
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	deadline := time.Now().Add(opts.MaxWait)
	for {
		progress, err := o.client.Status(ctx, sessionID)
		if err != nil {
			// Transient blips don't abort the wait; a dead target past
			// the deadline surfaces below as a timeout.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		} else {
			o.forward(sessionID, progress, opts.OnProgress, opts.OnStageChange)

			switch progress.Stage {
			case types.StageReady:
				return progress, nil
			case types.StageFailed:
				msg := progress.Error
				if msg == "" {
					msg = progress.Message
				}
				return nil, fmt.Errorf("%w: %s", ErrOrchestrationFailed, msg)
			}
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w after %s", ErrOrchestrationTimeout, opts.MaxWait)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}

// forward clamps the snapshot to the monotonic-progress contract, updates
// the registry, and emits callbacks. onStageChange fires at most once per
// distinct consecutive stage.
func (o *Orchestrator) forward(sessionID string, p *types.Progress, onProgress ProgressFunc, onStageChange StageChangeFunc) {
	o.mu.Lock()
	st, ok := o.sessions[sessionID]
	if !ok {
		o.mu.Unlock()
		return
	}
	if p.OverallProgress < st.maxOverall {
		p.OverallProgress = st.maxOverall
	} else {
		st.maxOverall = p.OverallProgress
	}
	stageChanged := p.Stage != st.lastStage
	st.lastStage = p.Stage
	st.session.Stage = p.Stage
	o.mu.Unlock()

	if onProgress != nil {
		onProgress(p.Stage, p.OverallProgress, p.Message)
	}
	if stageChanged && onStageChange != nil {
		onStageChange(p.Stage, p.Message)
	}
}

// CancelPreview requests orchestration cancellation and best-effort
// container release. The backend-address slot is cleared unconditionally,
// even when the network calls fail, so a stuck consumer can never keep
// addressing a torn-down backend. Returns true when the cancel request was
// accepted.
func (o *Orchestrator) CancelPreview(ctx context.Context, sessionID string) bool {
	defer func() {
		o.mu.Lock()
		o.backendAddress = ""
		if st, ok := o.sessions[sessionID]; ok {
			st.session.BackendAddress = ""
		}
		o.mu.Unlock()
	}()

	ok := true
	if err := o.client.Cancel(ctx, sessionID); err != nil {
		ok = false
	}
	// Release failure is tolerable: the remote TTL reclaims the container
	// regardless.
	_ = o.client.ReleaseContainer(ctx, sessionID, "preview_cancelled")
	return ok
}
