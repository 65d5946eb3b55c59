package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"dycrawler/pkg/config"
	"dycrawler/pkg/crawler"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender uses notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender uses osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender uses a PowerShell toast
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	escape := func(s string) string { return strings.ReplaceAll(s, "'", "''") }
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		$template = [Windows.UI.Notifications.ToastTemplateType]::ToastText02
		$xml = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent($template)
		$text = $xml.GetElementsByTagName('text')
		$text.Item(0).AppendChild($xml.CreateTextNode('%s')) | Out-Null
		$text.Item(1).AppendChild($xml.CreateTextNode('%s')) | Out-Null
		$toast = [Windows.UI.Notifications.ToastNotification]::new($xml)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier('dycrawler').Show($toast)
	`, escape(title), escape(message))
	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// Notifier prints a completion line and, when enabled, raises a desktop notification
type Notifier struct {
	out    io.Writer
	sender NotificationSender
	cfg    config.NotificationConfig
}

// NewNotifier picks the sender for the current platform. Desktop
// notifications are only sent when cfg enables them with type "desktop".
func NewNotifier(out io.Writer, cfg config.NotificationConfig) *Notifier {
	var sender NotificationSender
	if cfg.Enabled && cfg.NotificationType == "desktop" {
		switch runtime.GOOS {
		case "linux":
			sender = &LinuxNotificationSender{}
		case "darwin":
			sender = &MacOSNotificationSender{}
		case "windows":
			sender = &WindowsNotificationSender{}
		}
	}
	return &Notifier{out: out, sender: sender, cfg: cfg}
}

// NewNotifierWithSender is used by tests and embedders
func NewNotifierWithSender(out io.Writer, cfg config.NotificationConfig, sender NotificationSender) *Notifier {
	return &Notifier{out: out, sender: sender, cfg: cfg}
}

// NotifyCrawl reports the end of a crawl according to the configured triggers
func (n *Notifier) NotifyCrawl(s *crawler.Summary, err error) {
	if !n.cfg.Enabled {
		return
	}
	switch {
	case err != nil:
		if n.cfg.OnError {
			n.send(Red, "Crawl failed", err.Error())
		}
	case s == nil:
	case s.Failed > 0 && n.cfg.OnError:
		n.send(Yellow, "Crawl finished with errors", s.String())
	case n.cfg.OnComplete:
		n.send(Green, "Crawl finished", s.String())
	}
}

func (n *Notifier) send(color func(string) string, title, message string) {
	if n.cfg.NotificationType != "desktop" || n.sender == nil {
		fmt.Fprintf(n.out, "\a%s: %s\n", color(title), message)
		return
	}
	// Desktop notifications are best effort
	if err := n.sender.Send(title, message); err != nil {
		fmt.Fprintf(n.out, "%s: %s\n", color(title), message)
	}
}
