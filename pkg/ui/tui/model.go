package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dycrawler/pkg/crawler"
)

// EventSource is the part of a crawl handle the TUI needs
type EventSource interface {
	Events() <-chan crawler.Event
	Cancel()
}

type level int

const (
	levelInfo level = iota
	levelSuccess
	levelWarn
	levelError
)

type logLine struct {
	Time    time.Time
	Level   level
	Message string
}

// Model is the bubbletea model of a single crawl
type Model struct {
	source  EventSource
	title   string
	spinner spinner.Model
	bar     progress.Model

	percent   float64
	completed int
	total     int
	succeeded int
	failed    int
	status    string

	logs    []logLine
	maxLogs int

	summary    *crawler.Summary
	done       bool
	cancelling bool
	showHelp   bool

	width  int
	height int
	start  time.Time
}

// NewModel creates a model reading events from source
func NewModel(source EventSource, title string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	bar := progress.New(progress.WithGradient(string(accent), string(accentAlt)))
	bar.Width = 40

	return &Model{
		source:  source,
		title:   title,
		spinner: s,
		bar:     bar,
		status:  "fetching video list",
		maxLogs: 200,
		start:   time.Now(),
	}
}

// Summary returns the summary from the terminal event, if it arrived
func (m *Model) Summary() *crawler.Summary {
	return m.summary
}

// Done reports whether the event stream has closed
func (m *Model) Done() bool {
	return m.done
}

func (m *Model) addLog(l level, msg string, at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	m.logs = append(m.logs, logLine{Time: at, Level: l, Message: msg})
	if len(m.logs) > m.maxLogs {
		m.logs = m.logs[len(m.logs)-m.maxLogs:]
	}
}

// apply folds one crawl event into the model
func (m *Model) apply(ev crawler.Event) {
	switch ev.Type {
	case crawler.EventLog:
		m.addLog(classify(ev.Message), ev.Message, ev.Time)

	case crawler.EventProgress:
		if ev.Percent > m.percent {
			m.percent = ev.Percent
		}
		if ev.Total > 0 {
			m.total = ev.Total
		}

	case crawler.EventStatus:
		m.status = ev.Message
		if ev.Total > 0 {
			m.total = ev.Total
		}
		m.completed = ev.Completed
		if ev.Terminal {
			m.summary = ev.Summary
			if s := ev.Summary; s != nil {
				m.succeeded, m.failed = s.Succeeded, s.Failed
				if s.Outcome == crawler.OutcomeCompleted {
					m.percent = 100
				}
			}
			m.addLog(terminalLevel(ev.Summary), ev.Message, ev.Time)
			return
		}
		switch {
		case strings.Contains(ev.Message, " success: "):
			m.succeeded++
		case strings.Contains(ev.Message, " failed: "):
			m.failed++
		}
	}
}

func classify(msg string) level {
	switch {
	case strings.HasPrefix(msg, "saved "):
		return levelSuccess
	case strings.HasPrefix(msg, "failed"), strings.HasPrefix(msg, "cannot "):
		return levelError
	default:
		return levelInfo
	}
}

func terminalLevel(s *crawler.Summary) level {
	switch {
	case s == nil || s.Outcome == crawler.OutcomeFailed:
		return levelError
	case s.Outcome == crawler.OutcomeCancelled || s.Outcome == crawler.OutcomeNoVideosFound || s.Failed > 0:
		return levelWarn
	default:
		return levelSuccess
	}
}

// Init starts the spinner and the event pump
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.source.Events()))
}
