// Package cleanup manages the tail end of a preview session's life: the
// single terminal release of its container, and TTL auto-extension while a
// user is still active.
package cleanup

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/previewlabs/previewctl/internal/api"
)

// Client is the subset of the API client the cleanup manager needs
type Client interface {
	ReleaseContainer(ctx context.Context, sessionID, reason string) error
	ExtendTTL(ctx context.Context, sessionID string, minutes int) (*api.ExtendResponse, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Handler state machine values
const (
	stateActive int32 = iota
	stateReleased
)

// Handler owns the terminal cleanup of exactly one session. Cleanup is
// idempotent under concurrent callers: the active-to-released transition is
// an atomic compare-and-swap, so unmount, navigation and explicit cancel
// triggers cannot race into duplicate release calls.
type Handler struct {
	client    Client
	sessionID string
	state     atomic.Int32

	// OnReleased, when set, runs once after the release transition (e.g.
	// to drop the session from the orchestrator registry)
	OnReleased func(sessionID string)
}

// NewHandler creates a cleanup handler for a session
func NewHandler(client Client, sessionID string) *Handler {
	return &Handler{client: client, sessionID: sessionID}
}

// Cleanup releases the session's container resources exactly once. Repeat
// calls return immediately without a second network call. The transition is
// claimed before the network call is issued, and transport failures are
// swallowed: the remote TTL reclaims the container regardless, and cleanup
// must never abort the caller's teardown path.
func (h *Handler) Cleanup(ctx context.Context, reason string) error {
	if !h.state.CompareAndSwap(stateActive, stateReleased) {
		return nil
	}

	// Best effort from here on: the transition already happened locally.
	_ = h.client.ReleaseContainer(ctx, h.sessionID, reason)
	_ = h.client.DeleteSession(ctx, h.sessionID)

	if h.OnReleased != nil {
		h.OnReleased(h.sessionID)
	}
	return nil
}

// OnPreviewEnd releases the session with the standard end-of-preview reason
func (h *Handler) OnPreviewEnd(ctx context.Context) error {
	return h.Cleanup(ctx, "preview_ended")
}

// Extend extends the session's TTL. Once released, extension is rejected
// locally without a network call.
func (h *Handler) Extend(ctx context.Context, minutes int) (*api.ExtendResponse, error) {
	if h.Released() {
		return &api.ExtendResponse{Success: false, Error: "session already released"}, nil
	}
	return h.client.ExtendTTL(ctx, h.sessionID, minutes)
}

// Released reports whether the terminal cleanup has been claimed
func (h *Handler) Released() bool {
	return h.state.Load() == stateReleased
}

// SessionID returns the session this handler owns
func (h *Handler) SessionID() string {
	return h.sessionID
}

// AutoExtendConfig holds TTL auto-extension configuration
type AutoExtendConfig struct {
	// CheckInterval is how often the extender wakes up
	// Default: 10m
	CheckInterval time.Duration
	// ActivityWindow is the trailing window in which activity must have
	// occurred for an extension to be issued
	// Default: 5m
	ActivityWindow time.Duration
	// ExtendMinutes is how much TTL each extension requests
	// Default: 15
	ExtendMinutes int
}

// DefaultAutoExtendConfig returns the default auto-extend configuration
func DefaultAutoExtendConfig() AutoExtendConfig {
	return AutoExtendConfig{
		CheckInterval:  10 * time.Minute,
		ActivityWindow: 5 * time.Minute,
		ExtendMinutes:  15,
	}
}

// Extender issues TTL extensions; satisfied by *Handler, which adds the
// local rejection after release
type Extender interface {
	Extend(ctx context.Context, minutes int) (*api.ExtendResponse, error)
}

// StopFunc cancels a running auto-extender. Must be called exactly once on
// teardown; skipping it leaks the timer across session restarts.
type StopFunc func()

// AutoExtender keeps an active session alive by periodically extending its
// TTL, and deliberately lets idle sessions expire server-side by skipping
// the extension when no activity fell inside the trailing window.
type AutoExtender struct {
	extender Extender
	cfg      AutoExtendConfig

	mu           sync.Mutex
	lastActivity time.Time
}

// NewAutoExtender creates an auto-extender for a session's cleanup handler
func NewAutoExtender(extender Extender, cfg AutoExtendConfig) *AutoExtender {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 10 * time.Minute
	}
	if cfg.ActivityWindow <= 0 {
		cfg.ActivityWindow = 5 * time.Minute
	}
	if cfg.ExtendMinutes <= 0 {
		cfg.ExtendMinutes = 15
	}
	return &AutoExtender{
		extender:     extender,
		cfg:          cfg,
		lastActivity: time.Now(),
	}
}

// RecordActivity marks the session as in use. Wire this to coarse-grained
// user-interaction signals; every delivered log line or keypress does not
// need to call it.
func (a *AutoExtender) RecordActivity() {
	a.mu.Lock()
	a.lastActivity = time.Now()
	a.mu.Unlock()
}

// active reports whether activity occurred within the trailing window
func (a *AutoExtender) active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return time.Since(a.lastActivity) <= a.cfg.ActivityWindow
}

// Start begins the periodic extension loop. On each tick, exactly one
// extension request is issued if the session saw activity within the
// window; otherwise the tick is skipped. The returned stop function cancels
// the loop and must be called exactly once.
func (a *AutoExtender) Start() StopFunc {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(a.cfg.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.tick(ctx)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// tick issues at most one extension request. Transport errors are swallowed:
// a missed extension only shortens the TTL, and the next tick retries.
func (a *AutoExtender) tick(ctx context.Context) {
	if !a.active() {
		return
	}
	_, _ = a.extender.Extend(ctx, a.cfg.ExtendMinutes)
}
