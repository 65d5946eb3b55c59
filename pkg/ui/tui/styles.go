package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	accent    = lipgloss.Color("#FE2C55")
	accentAlt = lipgloss.Color("#25F4EE")
	okGreen   = lipgloss.Color("#39FF14")
	warnAmber = lipgloss.Color("#FFB300")
	errRed    = lipgloss.Color("#FF3B30")
	dimWhite  = lipgloss.Color("#B0B0B0")
	dimGray   = lipgloss.Color("#626262")

	headerStyle = lipgloss.NewStyle().
			Foreground(accentAlt).
			Bold(true)

	subtleStyle = lipgloss.NewStyle().
			Foreground(dimGray)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Background(accent).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(accentAlt).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	successStyle = lipgloss.NewStyle().
			Foreground(okGreen).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warnAmber).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errRed).
			Bold(true)

	logTimeStyle = lipgloss.NewStyle().
			Foreground(dimGray)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimGray).
			PaddingLeft(1)
)

// levelStyle picks the colour of a log line
func levelStyle(l level) lipgloss.Style {
	switch l {
	case levelSuccess:
		return successStyle
	case levelWarn:
		return warningStyle
	case levelError:
		return errorStyle
	default:
		return valueStyle
	}
}
