package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"dycrawler/pkg/crawler"
)

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	sections := []string{
		m.renderHeader(),
		m.renderProgressPanel(),
		m.renderLogsPanel(),
	}

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("q cancel • ? help"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	return lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render(" dycrawler "),
		" ",
		headerStyle.Render(truncate(m.title, m.width-14)),
	)
}

// renderProgressPanel shows the overall bar, counters and current status
func (m *Model) renderProgressPanel() string {
	width := m.width - 2

	status := m.status
	switch {
	case m.done:
		status = levelStyle(terminalLevel(m.summary)).Render(status)
	case m.cancelling:
		status = warningStyle.Render(m.spinner.View() + " " + status)
	default:
		status = valueStyle.Render(m.spinner.View() + " " + status)
	}

	counts := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		labelStyle.Render("done:"), valueStyle.Render(fmt.Sprintf("%d/%d", m.completed, m.total)),
		labelStyle.Render("ok:"), successStyle.Render(fmt.Sprint(m.succeeded)),
		labelStyle.Render("failed:"), errorStyle.Render(fmt.Sprint(m.failed)),
		labelStyle.Render("elapsed:"), valueStyle.Render(formatDuration(time.Since(m.start))),
	)

	lines := []string{
		truncate(status, width-4),
		m.bar.ViewAs(m.percent / 100),
		counts,
	}
	if s := m.summary; s != nil && s.Directory != "" {
		lines = append(lines, labelStyle.Render("saved to: ")+valueStyle.Render(s.Directory))
	}

	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// renderLogsPanel shows the tail of the log lines that fits the window
func (m *Model) renderLogsPanel() string {
	width := m.width - 2
	rows := m.height - 14
	if rows < 3 {
		rows = 3
	}

	start := len(m.logs) - rows
	if start < 0 {
		start = 0
	}

	var lines []string
	for _, l := range m.logs[start:] {
		ts := logTimeStyle.Render(l.Time.Format("15:04:05"))
		lines = append(lines, ts+" "+levelStyle(l.Level).Render(truncate(l.Message, width-14)))
	}
	if len(lines) == 0 {
		lines = append(lines, subtleStyle.Render("waiting for events..."))
	}

	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderHelp() string {
	help := strings.Join([]string{
		labelStyle.Render("q, ctrl+c") + "  cancel the crawl, press again to quit",
		labelStyle.Render("?") + "          toggle this help",
		labelStyle.Render("ctrl+l") + "     clear the log",
	}, "\n")
	return panelStyle.Width(m.width - 2).Render(help)
}

func truncate(s string, max int) string {
	if max <= 3 || lipgloss.Width(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// summaryLine renders the final line printed after the program exits
func summaryLine(s *crawler.Summary) string {
	if s == nil {
		return errorStyle.Render("crawl ended without a summary")
	}
	return levelStyle(terminalLevel(s)).Render(s.String())
}
