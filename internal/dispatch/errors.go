package dispatch

import "errors"

// Sink errors.
var (
	// ErrUnsupportedPlatform is returned by DesktopAlerter when the operating
	// system has no supported notification command.
	ErrUnsupportedPlatform = errors.New("desktop notifications are not supported on this platform")

	// ErrWebhook is returned when the webhook endpoint rejects an alert.
	ErrWebhook = errors.New("webhook delivery failed")
)
