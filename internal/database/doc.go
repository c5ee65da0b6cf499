// Package database stores the verdict history of PhishGuard in SQLite.
//
// Every classified URL is saved as a VerdictRecord together with the feature
// vector it was classified from, so a verdict can be explained after the
// tab is gone. The history backs the `history` command and the status
// server's /api/verdicts endpoint.
//
// The store uses modernc.org/sqlite, a CGO-free driver, with WAL journaling so
// the status server can read while the monitor writes.
package database
