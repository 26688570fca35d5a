package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/previewlabs/previewctl/internal/types"
)

func (m model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "starting..."
	}

	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("previewctl watch — %s", m.sessionID)))
	b.WriteString("\n")

	b.WriteString(m.renderProgress())
	b.WriteString("\n")

	b.WriteString(m.renderHealth())
	b.WriteString("\n")

	b.WriteString(dividerStyle.Render(strings.Repeat("─", max(m.width, 1))))
	b.WriteString("\n")

	b.WriteString(m.logs.View())
	b.WriteString("\n")

	if m.message != "" && m.isError {
		b.WriteString(errorStyle.Render(m.message))
	} else {
		follow := "follow: on"
		if !m.follow {
			follow = "follow: off"
		}
		b.WriteString(hotkeysStyle.Render(
			fmt.Sprintf("[f] %s  [↑/↓] scroll  [G] bottom  [q] quit", follow)))
	}

	return b.String()
}

func (m model) renderProgress() string {
	stage := m.progress.Stage
	if stage == "" {
		return detailStyle.Render("  waiting for first status...")
	}

	label := stageStyle.Render(string(stage))
	if !stage.IsTerminal() {
		label = m.spin.View() + " " + label
	} else if stage == types.StageFailed {
		label = failedStyle.Render(string(stage))
	}

	line := fmt.Sprintf("  %s %s %3d%%", label, m.renderBar(), m.progress.OverallProgress)
	if m.progress.Message != "" {
		line += "  " + detailStyle.Render(m.progress.Message)
	}
	return line
}

// renderBar draws a fixed-width progress bar from the overall percentage.
// The snapshot comes straight off the wire, so the fill is clamped to
// [0, width] rather than trusting the server to stay inside 0..100.
func (m model) renderBar() string {
	const width = 30
	filled := m.progress.OverallProgress * width / 100
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return barFilledStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
}

func (m model) renderHealth() string {
	if m.health == nil {
		return detailStyle.Render("  health: pending")
	}
	h := m.health
	state := healthStyleFor(h.State).Render(string(h.State))
	return fmt.Sprintf("  health: %s  up %.0fs  %.1fms avg  %d/%d checks ok",
		state, h.UptimeSeconds, h.AvgResponseTimeMs,
		h.HealthChecks.Total-h.HealthChecks.Failed, h.HealthChecks.Total)
}

func healthStyleFor(s types.HealthState) lipgloss.Style {
	switch s {
	case types.HealthHealthy:
		return healthyStyle
	case types.HealthDegraded, types.HealthStarting:
		return degradedStyle
	case types.HealthUnhealthy, types.HealthFailed:
		return failedStyle
	default:
		return detailStyle
	}
}
