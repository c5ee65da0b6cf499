package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
)

// TargetTypePage is the DevTools target type of a regular tab.
const TargetTypePage = "page"

// defaultCallTimeout bounds a protocol call when no timeout is configured.
const defaultCallTimeout = 10 * time.Second

// Target is one entry of the DevTools /json/list endpoint.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// VersionInfo is the DevTools /json/version payload.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Client lists and controls the tabs of a browser through its DevTools
// endpoint. It is safe for concurrent use.
type Client struct {
	endpoint string
	http     *resty.Client
	dialer   *websocket.Dialer
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCallTimeout sets the timeout applied to every protocol call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a client for the DevTools endpoint, for example
// "http://127.0.0.1:9222". It does not contact the browser.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}

	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		timeout:  defaultCallTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http = resty.New().
		SetBaseURL(c.endpoint).
		SetTimeout(c.timeout).
		SetHeader("Accept", "application/json")
	c.dialer = &websocket.Dialer{
		HandshakeTimeout: c.timeout,
	}

	return c, nil
}

// Endpoint returns the DevTools endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Version returns the browser version information.
func (c *Client) Version(ctx context.Context) (*VersionInfo, error) {
	var info VersionInfo
	if err := c.getJSON(ctx, "/json/version", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Targets returns every DevTools target, including workers and extensions.
func (c *Client) Targets(ctx context.Context) ([]Target, error) {
	var targets []Target
	if err := c.getJSON(ctx, "/json/list", &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// ListSessions returns one Session per open tab. Targets that are not
// pages (service workers, extension backgrounds) are omitted.
func (c *Client) ListSessions(ctx context.Context) ([]*Session, error) {
	targets, err := c.Targets(ctx)
	if err != nil {
		return nil, err
	}

	sessions := make([]*Session, 0, len(targets))
	for _, t := range targets {
		if t.Type != TargetTypePage {
			continue
		}
		sessions = append(sessions, newSession(c, t))
	}

	c.logger.Debug("listed sessions", "targets", len(targets), "pages", len(sessions))
	return sessions, nil
}

// closeTarget asks the browser to close a tab through the HTTP endpoint.
func (c *Client) closeTarget(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.R().SetContext(ctx).Get("/json/close/" + url.PathEscape(id))
	if err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrProtocol, id, err)
	}
	// 404 means the target is already gone, e.g. Page.close won the race.
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("%w: close %s: %s", ErrProtocol, id, resp.Status())
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %w", ErrProtocol, path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: GET %s: %s", ErrProtocol, path, resp.Status())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrProtocol, path, err)
	}
	return nil
}
