// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Secret values detected by pattern matching (bearer tokens, JWTs, API keys)
//   - Passwords embedded in URLs and sensitive query parameters
//
// PhishGuard logs the URL of every open tab. Those URLs routinely carry
// reset tokens and session parameters, so URL values are rewritten with
// only the sensitive parts masked. The verdict log and the history database
// are not log narration and keep the URL verbatim.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, log.Level(verbose))
//
//	logger.Info("evaluated",
//	    "tab", tabID,
//	    "url", "https://example.com/reset?token=abc", // token=***REDACTED***
//	)
package log
