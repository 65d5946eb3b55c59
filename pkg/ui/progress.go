package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"dycrawler/pkg/crawler"
)

// ProgressDisplay renders crawl events as log lines above a single
// overall progress bar
type ProgressDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	bar     *progressbar.ProgressBar
	verbose bool
	start   time.Time
}

// NewProgressDisplay creates a display writing to out. In verbose mode
// per-item status lines are printed as well.
func NewProgressDisplay(out io.Writer, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:     out,
		verbose: verbose,
		start:   time.Now(),
		bar: progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("listing"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "━",
				SaucerHead:    "╸",
				SaucerPadding: "─",
				BarStart:      "",
				BarEnd:        "",
			}),
		),
	}
}

// Consume renders events until the channel closes and returns the
// summary carried by the terminal event, if any
func (p *ProgressDisplay) Consume(events <-chan crawler.Event) *crawler.Summary {
	var summary *crawler.Summary
	for ev := range events {
		p.Handle(ev)
		if ev.Terminal {
			summary = ev.Summary
		}
	}
	return summary
}

// Handle renders one event
func (p *ProgressDisplay) Handle(ev crawler.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Type {
	case crawler.EventLog:
		p.println(Dim(ev.Time.Format("15:04:05")) + " " + ev.Message)
	case crawler.EventProgress:
		_ = p.bar.Set(int(ev.Percent))
	case crawler.EventStatus:
		if ev.Terminal {
			p.finish(ev)
			return
		}
		p.bar.Describe(fmt.Sprintf("%d/%d", ev.Completed, ev.Total))
		if p.verbose {
			p.println(ev.Message)
		}
	}
}

// println prints a line without tearing the bar
func (p *ProgressDisplay) println(line string) {
	_ = p.bar.Clear()
	fmt.Fprintln(p.out, line)
}

func (p *ProgressDisplay) finish(ev crawler.Event) {
	s := ev.Summary
	if s != nil && s.Outcome == crawler.OutcomeCompleted {
		_ = p.bar.Finish()
	} else {
		_ = p.bar.Clear()
	}
	fmt.Fprintln(p.out)

	switch {
	case s == nil:
		fmt.Fprintln(p.out, Red("✗ "+ev.Message))
	case s.Outcome == crawler.OutcomeFailed:
		fmt.Fprintln(p.out, Red("✗ "+ev.Message))
	case s.Outcome == crawler.OutcomeNoVideosFound:
		fmt.Fprintln(p.out, Yellow("! "+s.String()))
	case s.Outcome == crawler.OutcomeCancelled:
		fmt.Fprintln(p.out, Yellow("■ "+s.String()))
	default:
		fmt.Fprintln(p.out, Green("✓ "+s.String()))
	}

	if s != nil && s.Requested > 0 {
		fmt.Fprintf(p.out, "  %s %s in %s\n", Dim("•"), FormatBytes(totalBytes(s)), FormatDuration(time.Since(p.start)))
		if s.Directory != "" {
			fmt.Fprintf(p.out, "  %s saved to %s\n", Dim("•"), s.Directory)
		}
		if s.Failed > 0 {
			fmt.Fprintf(p.out, "  %s %d downloads failed\n", Dim("•"), s.Failed)
		}
	}
}

func totalBytes(s *crawler.Summary) int64 {
	var n int64
	for _, r := range s.Results {
		if r.Succeeded() {
			n += r.Size
		}
	}
	return n
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
