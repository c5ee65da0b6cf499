package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// HeadlessRenderer loads pages in a private headless Chromium started on
// first use. Each render gets a fresh tab, so concurrent renders are
// independent. A browser that failed to start or has exited is relaunched
// on the next render.
type HeadlessRenderer struct {
	timeout   time.Duration
	logger    *slog.Logger
	userAgent string
	proxy     string
	execPath  string
	allocOpts []chromedp.ExecAllocatorOption

	// mu guards browserCtx and cancel, which are nil while no browser runs.
	mu         sync.Mutex
	browserCtx context.Context
	cancel     context.CancelFunc
}

// HeadlessOption configures a HeadlessRenderer.
type HeadlessOption func(*HeadlessRenderer)

// WithHeadlessTimeout bounds one render.
func WithHeadlessTimeout(d time.Duration) HeadlessOption {
	return func(r *HeadlessRenderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithHeadlessLogger sets the logger.
func WithHeadlessLogger(logger *slog.Logger) HeadlessOption {
	return func(r *HeadlessRenderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHeadlessUserAgent overrides the browser user agent.
func WithHeadlessUserAgent(ua string) HeadlessOption {
	return func(r *HeadlessRenderer) {
		r.userAgent = ua
	}
}

// WithHeadlessProxy routes the headless browser through a proxy,
// e.g. "socks5://127.0.0.1:1080".
func WithHeadlessProxy(proxy string) HeadlessOption {
	return func(r *HeadlessRenderer) {
		r.proxy = proxy
	}
}

// WithExecPath sets the Chromium binary; by default chromedp searches PATH.
func WithExecPath(path string) HeadlessOption {
	return func(r *HeadlessRenderer) {
		r.execPath = path
	}
}

// NewHeadlessRenderer creates a renderer. The browser is not started until
// the first Render.
func NewHeadlessRenderer(opts ...HeadlessOption) *HeadlessRenderer {
	r := &HeadlessRenderer{
		timeout: 30 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.allocOpts = append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	r.allocOpts = append(r.allocOpts,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.userAgent != "" {
		r.allocOpts = append(r.allocOpts, chromedp.UserAgent(r.userAgent))
	}
	if r.proxy != "" {
		r.allocOpts = append(r.allocOpts, chromedp.ProxyServer(r.proxy))
	}
	if r.execPath != "" {
		r.allocOpts = append(r.allocOpts, chromedp.ExecPath(r.execPath))
	}
	return r
}

// browser returns a running browser context, launching Chromium when none
// is running or the previous one has gone away.
func (r *HeadlessRenderer) browser() (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browserCtx != nil && r.browserCtx.Err() == nil {
		return r.browserCtx, nil
	}
	if r.cancel != nil {
		r.logger.Warn("headless browser exited, relaunching")
		r.cancel()
		r.browserCtx, r.cancel = nil, nil
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), r.allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))
	cancel := func() {
		cancelBrowser()
		cancelAlloc()
	}

	// Running no actions on the browser context launches Chromium.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, err
	}
	r.logger.Debug("headless browser started")
	r.browserCtx, r.cancel = browserCtx, cancel
	return browserCtx, nil
}

// Render navigates a new tab to url and returns the document's outer HTML.
func (r *HeadlessRenderer) Render(ctx context.Context, url string, _ DocumentSource) (string, error) {
	browserCtx, err := r.browser()
	if err != nil {
		return "", fmt.Errorf("%w: start headless browser: %w", ErrRender, err)
	}

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer closeTab()

	runCtx, cancel := context.WithTimeout(tabCtx, r.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err = chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrRender, url, err)
	}
	return html, nil
}

// Close shuts the headless browser down.
func (r *HeadlessRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
		r.browserCtx, r.cancel = nil, nil
	}
	return nil
}
