// Package metrics exposes PhishGuard's operational counters.
//
// Metrics collects Prometheus counters for sweeps, evaluations, verdicts and
// failing dispatch sinks; it plugs into the poller as its Observer, into the
// batch processor as its evaluation callback and into the dispatcher as its
// failure hook. Server serves those metrics together with a health check
// and the recent verdict history over HTTP, using gin.
package metrics
