package tui

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"dycrawler/pkg/crawler"
)

// Run shows the full-screen view for a running crawl and blocks until
// the crawl ends. The summary line of a crawl that did not error is
// written to out once the alternate screen is gone.
func Run(h *crawler.Handle, out io.Writer) (crawler.Summary, error) {
	model := NewModel(h, h.ProfileURL)
	program := tea.NewProgram(model, tea.WithAltScreen())

	_, runErr := program.Run()
	if runErr != nil || !model.Done() {
		// Quit before the stream closed: cancel and drain the rest.
		h.Cancel()
		for range h.Events() {
		}
	}

	summary, err := h.Wait()
	if runErr != nil && err == nil {
		err = fmt.Errorf("terminal UI: %w", runErr)
	}
	if out != nil && err == nil {
		fmt.Fprintln(out, summaryLine(&summary))
	}
	return summary, err
}
