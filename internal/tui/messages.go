package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/previewlabs/previewctl/internal/types"
)

// statusMsg carries the result of a progress poll.
type statusMsg struct {
	progress *types.Progress
	err      error
}

// healthMsg carries the result of a health poll.
type healthMsg struct {
	metrics *types.HealthMetrics
	err     error
}

// logLineMsg is one streamed log entry.
type logLineMsg types.LogEntry

// logClosedMsg is sent when the log channel is drained and closed.
type logClosedMsg struct{}

// statusTickMsg schedules the next progress poll.
type statusTickMsg time.Time

// healthTickMsg schedules the next health poll.
type healthTickMsg time.Time

func statusTickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

func healthTickCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return healthTickMsg(t)
	})
}

func pollStatusCmd(client Client, sessionID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		p, err := client.Status(ctx, sessionID)
		return statusMsg{progress: p, err: err}
	}
}

func pollHealthCmd(client Client, sessionID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		h, err := client.Health(ctx, sessionID)
		return healthMsg{metrics: h, err: err}
	}
}

// waitForLogCmd blocks on the stream channel and re-arms after each line.
func waitForLogCmd(ch <-chan types.LogEntry) tea.Cmd {
	return func() tea.Msg {
		entry, ok := <-ch
		if !ok {
			return logClosedMsg{}
		}
		return logLineMsg(entry)
	}
}
