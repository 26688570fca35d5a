package tui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFD700")).
			Background(lipgloss.Color("#1a1a2e")).
			Padding(0, 2)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	stageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true)

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	barFilledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5599FF"))

	barEmptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#333333"))

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#333333"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22CC66"))

	degradedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFCC00"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	hotkeysStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Padding(0, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Padding(0, 2)
)
