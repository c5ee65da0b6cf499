package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/go-resty/resty/v2"
)

// ConsoleAlerter prints a highlighted warning to a terminal.
type ConsoleAlerter struct {
	w      io.Writer
	banner *color.Color
	detail *color.Color
}

// NewConsoleAlerter creates a ConsoleAlerter writing to w (os.Stderr if nil).
// Colors are disabled automatically when w is not a terminal.
func NewConsoleAlerter(w io.Writer) *ConsoleAlerter {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleAlerter{
		w:      w,
		banner: color.New(color.FgHiWhite, color.BgRed, color.Bold),
		detail: color.New(color.FgRed),
	}
}

// Name returns the sink name.
func (c *ConsoleAlerter) Name() string {
	return "console"
}

// Alert prints the warning.
func (c *ConsoleAlerter) Alert(_ context.Context, alert Alert) error {
	if _, err := c.banner.Fprint(c.w, " PHISHING "); err != nil {
		return err
	}
	_, err := c.detail.Fprintf(c.w, " %s (score %.2f, tab %s)\n", alert.URL, alert.Score, alert.SessionID)
	return err
}

// CommandRunner runs an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec // fixed notifier binaries
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return nil
}

// DesktopAlerter raises a native desktop notification: notify-send on Linux
// and the BSDs, osascript on macOS.
type DesktopAlerter struct {
	goos    string
	run     CommandRunner
	timeout time.Duration
}

// NewDesktopAlerter creates a DesktopAlerter for the running platform.
func NewDesktopAlerter() *DesktopAlerter {
	return &DesktopAlerter{goos: runtime.GOOS, run: execRunner, timeout: 5 * time.Second}
}

// Name returns the sink name.
func (d *DesktopAlerter) Name() string {
	return "desktop"
}

// Alert shows the notification.
func (d *DesktopAlerter) Alert(ctx context.Context, alert Alert) error {
	name, args, err := d.command(alert)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.run(ctx, name, args...)
}

func (d *DesktopAlerter) command(alert Alert) (string, []string, error) {
	const title = "PhishGuard"
	body := "Phishing page detected: " + alert.URL

	switch d.goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "notify-send", []string{"--urgency=critical", "--app-name=phishguard", title, body}, nil
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		return "osascript", []string{"-e", script}, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, d.goos)
	}
}

// WebhookAlerter posts alerts as JSON to an HTTP endpoint.
type WebhookAlerter struct {
	client *resty.Client
	url    string
}

// NewWebhookAlerter creates a WebhookAlerter posting to url.
func NewWebhookAlerter(url string, timeout time.Duration) *WebhookAlerter {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "phishguard")
	return &WebhookAlerter{client: client, url: url}
}

// Name returns the sink name.
func (w *WebhookAlerter) Name() string {
	return "webhook"
}

type webhookPayload struct {
	Event string `json:"event"`
	Alert
}

// Alert posts the alert.
func (w *WebhookAlerter) Alert(ctx context.Context, alert Alert) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{Event: "phishing_detected", Alert: alert}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWebhook, err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("%w: %s returned %d", ErrWebhook, w.url, resp.StatusCode())
	}
	return nil
}
