package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"dycrawler/pkg/crawler"
)

// eventMsg carries one crawl event into the program
type eventMsg crawler.Event

// streamClosedMsg is sent once the event channel is closed
type streamClosedMsg struct{}

// waitForEvent blocks on the next event from ch
func waitForEvent(ch <-chan crawler.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = barWidth(msg.Width)
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd

	case eventMsg:
		m.apply(crawler.Event(msg))
		return m, waitForEvent(m.source.Events())

	case streamClosedMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.done || m.cancelling {
			return m, tea.Quit
		}
		m.cancelling = true
		m.status = "cancelling"
		m.addLog(levelWarn, "cancel requested", time.Now())
		m.source.Cancel()
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logs = nil
		return m, nil
	}

	return m, nil
}

func barWidth(termWidth int) int {
	w := termWidth - 12
	switch {
	case w < 10:
		return 10
	case w > 80:
		return 80
	}
	return w
}
