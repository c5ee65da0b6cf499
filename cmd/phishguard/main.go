// Package main provides the entry point for the PhishGuard CLI.
//
// PhishGuard watches the tabs of a Chromium-based browser through its
// remote debugging port, classifies every visited page with a fitted model
// and closes the tabs it considers phishing.
//
// Usage:
//
//	phishguard watch
//	phishguard check <url>...
//	phishguard history [url]
//
// See --help for all available options.
package main

// main is the entry point for PhishGuard.
func main() {
	Execute()
}
