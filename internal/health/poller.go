// Package health polls and interprets sandbox health telemetry. It exposes
// single fetches, a blocking wait-until-healthy helper, and a continuous
// monitor that bridges state transitions into failure analysis.
package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/previewlabs/previewctl/internal/types"
)

// ErrHealthTimeout indicates the deadline elapsed before the backend became
// healthy or terminally failed
var ErrHealthTimeout = errors.New("timed out waiting for healthy backend")

// ErrSessionFailed indicates the backend reached the failed terminal state;
// waiting any longer would be pointless
var ErrSessionFailed = errors.New("backend entered failed state")

// Client is the subset of the API client the poller needs
type Client interface {
	Health(ctx context.Context, sessionID string) (*types.HealthMetrics, error)
}

// Analyzer produces root-cause analysis when the monitor observes a
// transition into an unhealthy or failed state
type Analyzer interface {
	Analyze(ctx context.Context, sessionID string) (*types.FailureAnalysis, error)
}

// UpdateFunc receives every health snapshot, healthy or not, so UIs can
// show live state
type UpdateFunc func(*types.HealthMetrics)

// ChangeFunc receives consecutive state transitions
type ChangeFunc func(newState, oldState types.HealthState)

// FailureFunc receives the analysis triggered by a transition into
// unhealthy or failed
type FailureFunc func(*types.FailureAnalysis)

// StopFunc cancels a running monitor. Must be called exactly once on
// teardown; skipping it leaks the polling goroutine.
type StopFunc func()

// Poller fetches and interprets health telemetry for preview sessions
type Poller struct {
	client   Client
	analyzer Analyzer
}

// NewPoller creates a health poller. analyzer may be nil, in which case
// monitors skip the failure-analysis bridge.
func NewPoller(client Client, analyzer Analyzer) *Poller {
	return &Poller{client: client, analyzer: analyzer}
}

// GetHealth performs a single health fetch with no retry; cadence is the
// caller's decision
func (p *Poller) GetHealth(ctx context.Context, sessionID string) (*types.HealthMetrics, error) {
	return p.client.Health(ctx, sessionID)
}

// WaitOptions configures one WaitForHealthy call
type WaitOptions struct {
	// Timeout bounds the whole wait (default: 2m)
	Timeout time.Duration
	// Interval is the sleep between fetches (default: 2s)
	Interval time.Duration
	// OnUpdate is invoked with every snapshot observed during the wait
	OnUpdate UpdateFunc
}

// WaitForHealthy polls until the backend reports healthy. It returns
// immediately with ErrSessionFailed when the failed terminal state is
// observed, and ErrHealthTimeout when the deadline elapses first.
//
// Transport errors mid-loop are swallowed and polling continues, unless the
// deadline has already passed, in which case the transport error is
// surfaced: resilience to transient blips must not mask a genuinely dead
// target past its deadline.
func (p *Poller) WaitForHealthy(ctx context.Context, sessionID string, opts WaitOptions) (*types.HealthMetrics, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}

	deadline := time.Now().Add(opts.Timeout)
	for {
		metrics, err := p.client.Health(ctx, sessionID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("health fetch failed past deadline: %w", err)
			}
		} else {
			if opts.OnUpdate != nil {
				opts.OnUpdate(metrics)
			}
			switch metrics.State {
			case types.HealthHealthy:
				return metrics, nil
			case types.HealthFailed:
				return nil, ErrSessionFailed
			}
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w after %s", ErrHealthTimeout, opts.Timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}

// MonitorOptions configures a continuous health monitor
type MonitorOptions struct {
	// Interval is the polling cadence (default: 5s)
	Interval time.Duration
	// OnUpdate is invoked with every snapshot
	OnUpdate UpdateFunc
	// OnHealthChange is invoked when consecutive snapshots differ in state
	OnHealthChange ChangeFunc
	// OnFailure is invoked with the analysis fetched on a transition into
	// unhealthy or failed
	OnFailure FailureFunc
}

// StartMonitor begins continuous health monitoring for a session. It diffs
// consecutive states and, on a transition into unhealthy or failed, fetches
// one failure analysis and reports it through OnFailure. The returned stop
// function cancels the monitor and must be called exactly once.
func (p *Poller) StartMonitor(sessionID string, opts MonitorOptions) StopFunc {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		lastState := types.HealthUnknown
		for {
			metrics, err := p.client.Health(ctx, sessionID)
			if err == nil {
				if opts.OnUpdate != nil {
					opts.OnUpdate(metrics)
				}
				if metrics.State != lastState {
					old := lastState
					lastState = metrics.State
					if opts.OnHealthChange != nil {
						opts.OnHealthChange(metrics.State, old)
					}
					if metrics.State == types.HealthUnhealthy || metrics.State == types.HealthFailed {
						p.reportFailure(ctx, sessionID, opts.OnFailure)
					}
				}
			}
			// Transport errors are swallowed: the monitor outlives blips
			// and the next tick retries.

			select {
			case <-ctx.Done():
				return
			case <-time.After(opts.Interval):
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}

func (p *Poller) reportFailure(ctx context.Context, sessionID string, onFailure FailureFunc) {
	if p.analyzer == nil || onFailure == nil {
		return
	}
	analysis, err := p.analyzer.Analyze(ctx, sessionID)
	if err != nil {
		return
	}
	onFailure(analysis)
}
