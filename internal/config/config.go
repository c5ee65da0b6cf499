package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultDevToolsURL is the HTTP endpoint of a Chromium browser started
	// with --remote-debugging-port=9222.
	DefaultDevToolsURL = "http://127.0.0.1:9222"

	// DefaultPollInterval is the pause between two successful sweeps.
	DefaultPollInterval = 4 * time.Second

	// DefaultErrorBackoff is the pause after a sweep whose session listing failed.
	DefaultErrorBackoff = 5 * time.Second

	// DefaultCallTimeout bounds every DevTools protocol call
	// (listing, URL fetch, DOM capture, close).
	DefaultCallTimeout = 10 * time.Second

	// DefaultRenderTimeout bounds one page render. Rendering loads the full
	// page with its subresources, so it gets more room than a protocol call.
	DefaultRenderTimeout = 30 * time.Second

	// DefaultWorkers is the number of sessions evaluated concurrently per sweep.
	DefaultWorkers = 4

	// DefaultMaxBodySize limits the HTML read by the HTTP renderer.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultUserAgent is sent by the HTTP renderer.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36 PhishGuard/1.0"

	// AppName is the application name used for XDG directory paths.
	AppName = "phishguard"

	// VerdictLogFile is the file name of the append-only verdict log.
	VerdictLogFile = "logs.txt"

	// ArtifactFile is the file name of the classifier artifact.
	ArtifactFile = "model.json"

	// WhitelistFile is the file name of the whitelist.
	WhitelistFile = "whitelist.txt"
)

// Renderer names.
const (
	// RendererHeadless renders each URL in a headless Chromium tab (chromedp).
	RendererHeadless = "headless"

	// RendererHTTP fetches each URL with a plain HTTP client; no JavaScript runs.
	RendererHTTP = "http"

	// RendererSession captures the DOM of the monitored tab itself.
	RendererSession = "session"
)

// Config holds all configuration options for PhishGuard.
// It is populated from defaults, the optional configuration file and CLI
// flags, and then passed through the application explicitly.
type Config struct {
	// DevToolsURL is the HTTP endpoint of the browser's remote debugging port.
	DevToolsURL string

	// PollInterval is the pause between two successful sweeps.
	PollInterval time.Duration

	// ErrorBackoff is the pause after a sweep whose session listing failed.
	ErrorBackoff time.Duration

	// CallTimeout bounds every individual DevTools protocol call.
	CallTimeout time.Duration

	// RenderTimeout bounds one page render.
	RenderTimeout time.Duration

	// Workers is the number of sessions evaluated concurrently per sweep.
	Workers int

	// ArtifactPath is the path of the JSON classifier artifact.
	ArtifactPath string

	// WhitelistPath is the path of the whitelist file. A missing file means
	// an empty whitelist.
	WhitelistPath string

	// WhitelistEntries are extra whitelist entries from the configuration file.
	WhitelistEntries []string

	// VerdictLogPath is the append-only log of phishing verdicts.
	VerdictLogPath string

	// DBDir is the directory of the SQLite verdict history.
	DBDir string

	// SaveToDB enables recording every verdict in the history database.
	SaveToDB bool

	// Renderer selects how documents are obtained: headless, http or session.
	Renderer string

	// RenderProxy is an optional SOCKS5 proxy address ("host:port") used by
	// the HTTP renderer.
	RenderProxy string

	// UserAgent is sent by the HTTP renderer.
	UserAgent string

	// MaxBodySize is the maximum HTML size in bytes read by the HTTP renderer.
	// Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// CloseOnPhishing closes a tab once it is classified as phishing.
	CloseOnPhishing bool

	// ConsoleAlerts prints a colored alert on stderr for each phishing verdict.
	ConsoleAlerts bool

	// DesktopAlerts raises a desktop notification for each phishing verdict.
	DesktopAlerts bool

	// WebhookURL receives a JSON POST for each phishing verdict when set.
	WebhookURL string

	// MetricsAddr is the listen address of the status server. Empty disables it.
	MetricsAddr string

	// RecheckInterval skips URLs found benign less than this long ago.
	// Zero disables the cache, so every sweep re-evaluates every tab.
	RecheckInterval time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// ConfigFilePath is the explicit configuration file path, if any.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		DevToolsURL:     DefaultDevToolsURL,
		PollInterval:    DefaultPollInterval,
		ErrorBackoff:    DefaultErrorBackoff,
		CallTimeout:     DefaultCallTimeout,
		RenderTimeout:   DefaultRenderTimeout,
		Workers:         DefaultWorkers,
		ArtifactPath:    filepath.Join(XDGConfigDir(), ArtifactFile),
		WhitelistPath:   filepath.Join(XDGConfigDir(), WhitelistFile),
		VerdictLogPath:  filepath.Join(XDGDataDir(), VerdictLogFile),
		DBDir:           XDGDataDir(),
		SaveToDB:        true,
		Renderer:        RendererHeadless,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		CloseOnPhishing: true,
		ConsoleAlerts:   true,
		DesktopAlerts:   true,
	}
}

// XDGDataDir returns the XDG data directory for PhishGuard.
// On Linux: ~/.local/share/phishguard
// On macOS: ~/Library/Application Support/phishguard
// On Windows: %LOCALAPPDATA%\phishguard
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for PhishGuard.
// On Linux: ~/.config/phishguard
// On macOS: ~/Library/Application Support/phishguard
// On Windows: %APPDATA%\phishguard
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors above.
func (c *Config) Validate() error {
	if !isHTTPURL(c.DevToolsURL) {
		return ErrInvalidDevToolsURL
	}

	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}

	if c.ErrorBackoff <= 0 {
		return ErrInvalidErrorBackoff
	}

	if c.CallTimeout <= 0 || c.RenderTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	switch c.Renderer {
	case RendererHeadless, RendererHTTP, RendererSession:
	default:
		return ErrInvalidRenderer
	}

	if c.ArtifactPath == "" {
		return ErrNoArtifact
	}

	if c.RecheckInterval < 0 {
		return ErrInvalidRecheckInterval
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.WebhookURL != "" && !isHTTPURL(c.WebhookURL) {
		return ErrInvalidWebhookURL
	}

	return nil
}

// EffectiveMaxBodySize returns MaxBodySize, or the default when it is zero.
func (c *Config) EffectiveMaxBodySize() int64 {
	if c.MaxBodySize == 0 {
		return DefaultMaxBodySize
	}
	return c.MaxBodySize
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
