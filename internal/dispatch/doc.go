// Package dispatch acts on phishing verdicts.
//
// A Dispatcher fans one phishing Evaluation out to its sinks: alerters that
// warn the user (console, desktop notification, webhook), the append-only
// verdict log, and finally a best-effort close of the offending tab. Sinks are
// isolated from each other; a failing sink is logged and counted, never
// propagated, so the monitor loop keeps running.
package dispatch
