package browser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/proxy"
)

// defaultMaxBodySize limits the HTML read by HTTPRenderer.
const defaultMaxBodySize = 5 * 1024 * 1024

// HTTPRenderer fetches pages with a plain HTTP client. Scripts do not run,
// so script-built links and forms are not seen; it needs no browser binary.
type HTTPRenderer struct {
	client      *resty.Client
	maxBodySize int64
	logger      *slog.Logger
}

// HTTPOption configures an HTTPRenderer.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	timeout     time.Duration
	userAgent   string
	proxy       string
	maxBodySize int64
	logger      *slog.Logger
}

// WithHTTPTimeout bounds one fetch.
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(c *httpConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPUserAgent sets the User-Agent header.
func WithHTTPUserAgent(ua string) HTTPOption {
	return func(c *httpConfig) {
		c.userAgent = ua
	}
}

// WithSOCKS5Proxy routes fetches through a SOCKS5 proxy at "host:port".
func WithSOCKS5Proxy(addr string) HTTPOption {
	return func(c *httpConfig) {
		c.proxy = addr
	}
}

// WithMaxBodySize limits how many bytes of a response are read.
func WithMaxBodySize(n int64) HTTPOption {
	return func(c *httpConfig) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(c *httpConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewHTTPRenderer creates an HTTPRenderer.
func NewHTTPRenderer(opts ...HTTPOption) (*HTTPRenderer, error) {
	cfg := &httpConfig{
		timeout:     30 * time.Second,
		maxBodySize: defaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := resty.New().
		SetTimeout(cfg.timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9")
	if cfg.userAgent != "" {
		client.SetHeader("User-Agent", cfg.userAgent)
	}

	if cfg.proxy != "" {
		dialer, err := proxy.SOCKS5("tcp", cfg.proxy, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("create SOCKS5 dialer: %w", err)
		}
		transport := &http.Transport{
			Proxy:               nil,
			TLSHandshakeTimeout: cfg.timeout,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		}
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
		client.SetTransport(transport)
	}

	return &HTTPRenderer{
		client:      client,
		maxBodySize: cfg.maxBodySize,
		logger:      cfg.logger,
	}, nil
}

// Render fetches url and returns its body. Non-HTML responses and error
// statuses fail with ErrNotHTML and ErrRender respectively.
func (r *HTTPRenderer) Render(ctx context.Context, url string, _ DocumentSource) (string, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %w", ErrRender, url, err)
	}
	body := resp.RawBody()
	defer body.Close() //nolint:errcheck // read-only response body

	if resp.StatusCode() >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: fetch %s: %s", ErrRender, url, resp.Status())
	}

	data, err := io.ReadAll(io.LimitReader(body, r.maxBodySize))
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", ErrRender, url, err)
	}

	if !isHTML(resp.Header().Get("Content-Type"), data) {
		return "", fmt.Errorf("%w: %s is %s", ErrNotHTML, url, mimetype.Detect(data).String())
	}
	return string(data), nil
}

// isHTML accepts a document when either the server or content sniffing
// says it is HTML.
func isHTML(contentType string, data []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml") {
		return true
	}
	mt := mimetype.Detect(bytes.TrimSpace(data))
	return mt.Is("text/html") || mt.Is("application/xhtml+xml")
}
