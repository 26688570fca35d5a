// Package logstream presents callers with an ordered, deduplicated,
// size-bounded view of sandbox log lines regardless of transport
// interruptions. One underlying subscription per session is fanned out to
// any number of registered callbacks.
package logstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/previewlabs/previewctl/internal/api"
	"github.com/previewlabs/previewctl/internal/types"
)

// Stream is a live source of log entries for one session
type Stream interface {
	Next() (types.LogEntry, error)
	Close() error
}

// Client is the subset of the API client the manager needs
type Client interface {
	Logs(ctx context.Context, sessionID string, tail int, level types.LogLevel) ([]types.LogEntry, error)
	StreamLogs(ctx context.Context, sessionID string) (Stream, error)
}

// Adapt wraps the concrete API client in the Client interface
func Adapt(c *api.Client) Client {
	return apiAdapter{c}
}

type apiAdapter struct{ c *api.Client }

func (a apiAdapter) Logs(ctx context.Context, sessionID string, tail int, level types.LogLevel) ([]types.LogEntry, error) {
	return a.c.Logs(ctx, sessionID, tail, level)
}

func (a apiAdapter) StreamLogs(ctx context.Context, sessionID string) (Stream, error) {
	return a.c.StreamLogs(ctx, sessionID)
}

// EntryFunc receives log entries in arrival order
type EntryFunc func(types.LogEntry)

// Config holds log stream manager configuration
type Config struct {
	// BufferSize bounds the per-session replay buffer
	// Default: 200
	BufferSize int
	// SeedTail is how many historical entries to fetch before streaming
	// Default: 100
	SeedTail int
	// ReconnectBackoff is the fixed delay before reopening a dropped stream
	// Default: 5s
	ReconnectBackoff time.Duration
}

// DefaultConfig returns the default manager configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:       200,
		SeedTail:         100,
		ReconnectBackoff: 5 * time.Second,
	}
}

// Subscription is a handle for removing one callback. Unsubscribing it does
// not affect other subscribers to the same session.
type Subscription struct {
	sessionID string
	id        int
}

// Manager multiplexes log subscriptions. Safe for concurrent use.
type Manager struct {
	client Client
	cfg    Config

	mu      sync.Mutex
	streams map[string]*sessionStream
}

// NewManager creates a log stream manager with the provided configuration
func NewManager(client Client, cfg Config) *Manager {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 200
	}
	if cfg.SeedTail <= 0 {
		cfg.SeedTail = 100
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = 5 * time.Second
	}
	return &Manager{
		client:  client,
		cfg:     cfg,
		streams: make(map[string]*sessionStream),
	}
}

// Subscribe registers a callback for a session's log entries. The current
// buffer is replayed to the callback before live entries arrive. The first
// subscriber for a session opens the underlying transport; later ones share
// it.
func (m *Manager) Subscribe(sessionID string, fn EntryFunc) (*Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("callback cannot be nil")
	}

	m.mu.Lock()
	ss, ok := m.streams[sessionID]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		ss = &sessionStream{
			sessionID: sessionID,
			callbacks: make(map[int]EntryFunc),
			seen:      make(map[string]struct{}),
			cancel:    cancel,
			done:      make(chan struct{}),
		}
		m.streams[sessionID] = ss
		go m.run(ctx, ss)
	}
	m.mu.Unlock()

	// Replay-then-stream: the new subscriber sees everything currently
	// buffered before any live entry. Holding deliverMu across the replay
	// keeps live delivery from interleaving; the replay itself runs
	// without ss.mu so the callback may call back into the manager.
	ss.deliverMu.Lock()
	defer ss.deliverMu.Unlock()

	ss.mu.Lock()
	id := ss.nextID
	ss.nextID++
	ss.callbacks[id] = fn
	replay := make([]types.LogEntry, len(ss.buffer))
	copy(replay, ss.buffer)
	ss.mu.Unlock()

	for _, entry := range replay {
		fn(entry)
	}
	return &Subscription{sessionID: sessionID, id: id}, nil
}

// Unsubscribe removes exactly one callback. When the last callback for a
// session is removed, the transport is torn down immediately and not
// reopened speculatively. Removing the last subscription blocks until the
// stream goroutine exits, so that case must not run inside the session's
// own callback; removing a non-last subscription is callback-safe.
func (m *Manager) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	m.mu.Lock()
	ss, ok := m.streams[sub.sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	ss.mu.Lock()
	delete(ss.callbacks, sub.id)
	empty := len(ss.callbacks) == 0
	ss.mu.Unlock()
	if empty {
		delete(m.streams, sub.sessionID)
	}
	m.mu.Unlock()

	if empty {
		ss.cancel()
		<-ss.done
	}
}

// Entries returns a copy of the current buffer for a session
func (m *Manager) Entries(sessionID string) []types.LogEntry {
	m.mu.Lock()
	ss, ok := m.streams[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	out := make([]types.LogEntry, len(ss.buffer))
	copy(out, ss.buffer)
	return out
}

// Close tears down every open transport and drops all subscriptions.
// The manager must not be used after Close.
func (m *Manager) Close() {
	m.mu.Lock()
	streams := m.streams
	m.streams = make(map[string]*sessionStream)
	m.mu.Unlock()

	for _, ss := range streams {
		ss.cancel()
		<-ss.done
	}
}

// ActiveSessions returns the session IDs with an open subscription
func (m *Manager) ActiveSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.streams))
	for id := range m.streams {
		ids = append(ids, id)
	}
	return ids
}

// sessionStream is the per-session state: one transport, N callbacks.
// mu guards callbacks, buffer, and the dedup set. deliverMu serializes
// fan-out with subscription replay so each callback sees arrival order and
// no live entry lands before its replay finishes; callbacks are invoked
// without mu held, so they may call back into the manager.
type sessionStream struct {
	sessionID string

	// deliverMu is only ever taken by the run goroutine and Subscribe,
	// never by a callback path.
	deliverMu sync.Mutex

	mu        sync.Mutex
	callbacks map[int]EntryFunc
	nextID    int
	buffer    []types.LogEntry
	// seen holds dedup keys for suppressing entries redelivered across a
	// reconnect. seenOrder allows FIFO eviction so the set stays bounded.
	seen      map[string]struct{}
	seenOrder []string

	cancel context.CancelFunc
	done   chan struct{}
}

// run drives the seed-then-stream protocol until the context is cancelled.
// Each (re)connect seeds from the tail fetch so no entries are lost across
// a gap; duplicates from the overlap are removed by dedup.
func (m *Manager) run(ctx context.Context, ss *sessionStream) {
	defer close(ss.done)

	for {
		if err := m.connectOnce(ctx, ss); err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.cfg.ReconnectBackoff):
			}
			continue
		}
		// connectOnce only returns nil on cancellation
		return
	}
}

// connectOnce performs one seed fetch and pumps the live stream until it
// drops. Returns nil only when the context is cancelled.
func (m *Manager) connectOnce(ctx context.Context, ss *sessionStream) error {
	seed, err := m.client.Logs(ctx, ss.sessionID, m.cfg.SeedTail, "")
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	for _, entry := range seed {
		m.deliver(ss, entry)
	}

	stream, err := m.client.StreamLogs(ctx, ss.sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	// Close the transport as soon as the subscriber set drains; a blocked
	// Next returns with an error.
	closed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-closed:
		}
	}()
	defer close(closed)
	defer stream.Close()

	for {
		entry, err := stream.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream dropped: %w", err)
		}
		m.deliver(ss, entry)
	}
}

// maxSeen bounds the dedup set independently of the replay buffer so that
// eviction from the buffer doesn't reopen old entries to redelivery.
const maxSeen = 2048

// deliver appends one entry to the buffer and fans it out, unless its dedup
// key was already seen. Entries sharing (timestamp, message) are treated as
// one event redelivered by a reconnecting stream; see LogEntry.DedupKey for
// the known false-merge limitation.
func (m *Manager) deliver(ss *sessionStream, entry types.LogEntry) {
	ss.deliverMu.Lock()
	defer ss.deliverMu.Unlock()

	ss.mu.Lock()
	key := entry.DedupKey()
	if _, dup := ss.seen[key]; dup {
		ss.mu.Unlock()
		return
	}
	ss.seen[key] = struct{}{}
	ss.seenOrder = append(ss.seenOrder, key)
	if len(ss.seenOrder) > maxSeen {
		evict := ss.seenOrder[0]
		ss.seenOrder = ss.seenOrder[1:]
		delete(ss.seen, evict)
	}

	ss.buffer = append(ss.buffer, entry)
	if len(ss.buffer) > m.cfg.BufferSize {
		copy(ss.buffer, ss.buffer[len(ss.buffer)-m.cfg.BufferSize:])
		ss.buffer = ss.buffer[:m.cfg.BufferSize]
	}

	fns := make([]EntryFunc, 0, len(ss.callbacks))
	for _, fn := range ss.callbacks {
		fns = append(fns, fn)
	}
	ss.mu.Unlock()

	// Fan out without ss.mu so callbacks may call Entries or Unsubscribe.
	for _, fn := range fns {
		fn(entry)
	}
}
