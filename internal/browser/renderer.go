package browser

import (
	"context"
	"fmt"
)

// DocumentSource yields the DOM of a live tab.
type DocumentSource interface {
	Document(ctx context.Context) (string, error)
}

// Renderer produces the HTML of a page for feature extraction.
// tab is the monitored tab the URL came from; renderers that load the URL
// themselves ignore it.
type Renderer interface {
	Render(ctx context.Context, url string, tab DocumentSource) (string, error)
}

// SessionRenderer captures the DOM of the monitored tab instead of loading
// the URL a second time. It sees exactly what the user sees, including
// script-built content, and sends no extra request to the site.
type SessionRenderer struct{}

// NewSessionRenderer creates a SessionRenderer.
func NewSessionRenderer() *SessionRenderer {
	return &SessionRenderer{}
}

// Render returns the outer HTML of tab.
func (r *SessionRenderer) Render(ctx context.Context, url string, tab DocumentSource) (string, error) {
	if tab == nil {
		return "", fmt.Errorf("%w: no tab to capture for %s", ErrRender, url)
	}
	html, err := tab.Document(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: capture %s: %w", ErrRender, url, err)
	}
	return html, nil
}
