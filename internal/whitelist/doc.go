// Package whitelist implements the trusted-pattern filter consulted before
// any page is rendered. Entries are lowercased substrings; a URL matches
// when its lowercased form contains any entry.
package whitelist
