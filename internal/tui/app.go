package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/previewlabs/previewctl/internal/logstream"
	"github.com/previewlabs/previewctl/internal/types"
)

// Run starts the watch dashboard for one session and blocks until the user
// quits. onActivity, when non-nil, fires on every keypress so a TTL
// auto-extender can treat a driven dashboard as session activity. The log
// stream subscription is torn down before returning.
func Run(client Client, streams *logstream.Manager, sessionID string, onActivity func()) error {
	// Bridge the callback-based stream into a channel the Bubble Tea
	// event loop can block on. The buffer absorbs bursts between frames;
	// when it fills, the callback drops rather than stall delivery to
	// other subscribers.
	logCh := make(chan types.LogEntry, 256)
	sub, err := streams.Subscribe(sessionID, func(entry types.LogEntry) {
		select {
		case logCh <- entry:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing to logs: %w", err)
	}
	defer streams.Unsubscribe(sub)

	m := newModel(client, sessionID, logCh, onActivity)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}
