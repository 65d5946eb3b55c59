package ui

import (
	"fmt"
	"io"
	"os"
)

// Banner is printed above interactive runs
const Banner = `
  ┌─┐ ┬ ┬ ┌─┐ ┬─┐ ┌─┐ ┬ ┬ ┬ ┬   ┌─┐ ┬─┐
  │ │ └┬┘ │   ├┬┘ ├─┤ │││ │   ├┤  ├┬┘
  └─┘  ┴  └─┘ ┴└─ ┴ ┴ └┴┘ ┴─┘ └─┘ ┴└─
  creator catalogue downloader
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// noColor follows the NO_COLOR convention
var noColor = os.Getenv("NO_COLOR") != ""

// SetNoColor disables or re-enables ANSI colours
func SetNoColor(disabled bool) {
	noColor = disabled
}

func colorize(format string) func(string) string {
	return func(text string) string {
		if noColor {
			return text
		}
		return fmt.Sprintf(format, text)
	}
}

// PrintBanner prints the banner
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(w io.Writer, msg string, err error) {
	if err != nil {
		msg += ": " + err.Error()
	}
	fmt.Fprintln(w, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(w io.Writer, msg string) {
	fmt.Fprintln(w, Yellow(msg))
}
