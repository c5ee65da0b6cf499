package browser

import "errors"

// Browser errors.
var (
	// ErrProtocol is returned for every failed DevTools call: listing tabs,
	// reading a tab's URL or DOM, closing a tab, or a call that timed out.
	// These failures are transient; the next sweep tries again.
	ErrProtocol = errors.New("devtools protocol error")

	// ErrSessionReleased is returned when a call is made on a released session.
	ErrSessionReleased = errors.New("session released")

	// ErrRender is returned when a renderer cannot produce a document.
	ErrRender = errors.New("render failed")

	// ErrNotHTML is returned by HTTPRenderer when the response is not HTML.
	ErrNotHTML = errors.New("document is not HTML")

	// ErrInvalidEndpoint is returned when the DevTools endpoint cannot be parsed.
	ErrInvalidEndpoint = errors.New("invalid devtools endpoint")
)
