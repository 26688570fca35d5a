package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/previewlabs/previewctl/internal/types"
)

// maxLogLines bounds the scrollback kept in the log viewport.
const maxLogLines = 500

// Client is the slice of the API client the dashboard polls.
type Client interface {
	Status(ctx context.Context, sessionID string) (*types.Progress, error)
	Health(ctx context.Context, sessionID string) (*types.HealthMetrics, error)
}

// model is the Bubble Tea model for the watch dashboard.
type model struct {
	client    Client
	sessionID string

	progress types.Progress
	health   *types.HealthMetrics
	spin     spinner.Model
	logs     viewport.Model
	logLines []string
	logCh    <-chan types.LogEntry

	// onActivity fires on every keypress so the session's TTL auto-extender
	// sees the user as active while the dashboard is driven
	onActivity func()

	width    int
	height   int
	ready    bool // viewport sized at least once
	follow   bool // auto-scroll; off once the user scrolls up
	message  string
	isError  bool
	quitting bool
}

func newModel(client Client, sessionID string, logCh <-chan types.LogEntry, onActivity func()) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return model{
		client:     client,
		sessionID:  sessionID,
		spin:       sp,
		logCh:      logCh,
		onActivity: onActivity,
		follow:     true,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		pollStatusCmd(m.client, m.sessionID),
		pollHealthCmd(m.client, m.sessionID),
		waitForLogCmd(m.logCh),
	)
}
