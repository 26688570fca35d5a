package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/previewlabs/previewctl/internal/types"
)

// chromeHeight is the number of rows above/below the log viewport:
// header, progress line, health line, divider and hotkey footer.
const chromeHeight = 6

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vh := msg.Height - chromeHeight
		if vh < 3 {
			vh = 3
		}
		if !m.ready {
			m.logs = viewport.New(msg.Width, vh)
			m.ready = true
		} else {
			m.logs.Width = msg.Width
			m.logs.Height = vh
		}
		m.refreshLogView()
		return m, nil

	case statusMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("status poll: %v", msg.err)
			m.isError = true
		} else {
			m.progress = *msg.progress
			m.message = ""
			m.isError = false
		}
		if m.progress.Stage.IsTerminal() {
			// Keep the dashboard open so failure output stays visible,
			// but stop polling a finished session.
			return m, nil
		}
		return m, statusTickCmd()

	case healthMsg:
		if msg.err == nil {
			m.health = msg.metrics
		}
		return m, healthTickCmd()

	case statusTickMsg:
		return m, pollStatusCmd(m.client, m.sessionID)

	case healthTickMsg:
		return m, pollHealthCmd(m.client, m.sessionID)

	case logLineMsg:
		m.appendLog(types.LogEntry(msg))
		return m, waitForLogCmd(m.logCh)

	case logClosedMsg:
		m.message = "log stream closed"
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.onActivity != nil {
			m.onActivity()
		}
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "f":
			m.follow = !m.follow
			if m.follow {
				m.logs.GotoBottom()
			}
			return m, nil
		case "up", "k", "pgup":
			m.follow = false
		case "G":
			m.follow = true
			m.logs.GotoBottom()
			return m, nil
		}
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *model) appendLog(entry types.LogEntry) {
	line := fmt.Sprintf("%s %-5s %s",
		entry.Timestamp.Format("15:04:05"), entry.Level, entry.Message)
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
	m.refreshLogView()
}

func (m *model) refreshLogView() {
	if !m.ready {
		return
	}
	m.logs.SetContent(strings.Join(m.logLines, "\n"))
	if m.follow {
		m.logs.GotoBottom()
	}
}
