// Package config provides the configuration of PhishGuard: defaults,
// validation, the optional YAML configuration file and the XDG paths used
// for the verdict log, the history database, the classifier artifact and
// the whitelist.
package config
