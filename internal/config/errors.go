package config

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the root of every configuration error.
// It covers invalid settings as well as a missing or unloadable classifier
// artifact, whitelist or configuration file. Callers treat it as fatal at
// startup.
var ErrConfiguration = errors.New("configuration error")

// Configuration validation errors.
// These errors are returned by Config.Validate() and all wrap ErrConfiguration,
// so callers can match either the specific problem or the whole class.
var (
	// ErrInvalidDevToolsURL is returned when the DevTools endpoint is empty
	// or is not an http(s) URL.
	ErrInvalidDevToolsURL = fmt.Errorf("%w: invalid devtools endpoint: must be an http or https URL", ErrConfiguration)

	// ErrInvalidPollInterval is returned when the poll interval is not positive.
	// A zero interval would spin the poller in a tight loop.
	ErrInvalidPollInterval = fmt.Errorf("%w: invalid poll interval: must be positive", ErrConfiguration)

	// ErrInvalidErrorBackoff is returned when the error backoff is not positive.
	ErrInvalidErrorBackoff = fmt.Errorf("%w: invalid error backoff: must be positive", ErrConfiguration)

	// ErrInvalidTimeout is returned when the protocol call timeout or the
	// render timeout is not positive.
	ErrInvalidTimeout = fmt.Errorf("%w: invalid timeout: must be positive", ErrConfiguration)

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = fmt.Errorf("%w: invalid worker count: must be positive", ErrConfiguration)

	// ErrInvalidRenderer is returned when the renderer name is unknown.
	ErrInvalidRenderer = fmt.Errorf("%w: invalid renderer: must be headless, http or session", ErrConfiguration)

	// ErrNoArtifact is returned when no classifier artifact path is configured.
	ErrNoArtifact = fmt.Errorf("%w: no classifier artifact specified", ErrConfiguration)

	// ErrInvalidRecheckInterval is returned when the recheck interval is negative.
	// Zero disables the recheck cache.
	ErrInvalidRecheckInterval = fmt.Errorf("%w: invalid recheck interval: must be non-negative", ErrConfiguration)

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = fmt.Errorf("%w: invalid max body size: must be non-negative", ErrConfiguration)

	// ErrInvalidWebhookURL is returned when a webhook URL is set but is not
	// an http(s) URL.
	ErrInvalidWebhookURL = fmt.Errorf("%w: invalid webhook URL: must be an http or https URL", ErrConfiguration)
)
