package features

import (
	"net"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/phishguard/internal/model"
)

// URL length thresholds in characters.
const (
	longURLThreshold  = 54
	shortURLThreshold = 20

	// redirectOffset is the number of leading characters ignored when looking
	// for "//", which skips an "http://" prefix.
	redirectOffset = 7
)

// ipURLRegex matches a URL whose authority starts with a dotted number.
var ipURLRegex = regexp.MustCompile(`^(http|https)://\d{1,3}\.`)

// schemeRegex matches an optional scheme followed by "//".
var schemeRegex = regexp.MustCompile(`^([A-Za-z0-9+\-.]+:)?//`)

// HostParts is the split of a URL host into subdomain, registrable domain
// label and public suffix. For "https://a.b.example.co.uk/" it is
// {Subdomain: "a.b", Domain: "example", Suffix: "co.uk"}.
type HostParts struct {
	Subdomain string
	Domain    string
	Suffix    string
}

// SplitHost extracts the host from a URL and splits it against the ICANN
// section of the public suffix list. Private suffixes (e.g. hosting
// providers) are treated as ordinary domains. IP hosts have no subdomain and
// a host with no known suffix uses its last label as the domain.
func SplitHost(rawURL string) HostParts {
	host := hostOf(rawURL)
	if host == "" {
		return HostParts{}
	}

	if net.ParseIP(host) != nil {
		return HostParts{Domain: host}
	}

	labels := strings.Split(host, ".")
	for i := range labels {
		candidate := strings.Join(labels[i:], ".")
		suffix, icann := publicsuffix.PublicSuffix(candidate)
		if !icann || suffix != candidate {
			continue
		}
		if i == 0 {
			return HostParts{Suffix: candidate}
		}
		return HostParts{
			Subdomain: strings.Join(labels[:i-1], "."),
			Domain:    labels[i-1],
			Suffix:    candidate,
		}
	}

	last := len(labels) - 1
	return HostParts{
		Subdomain: strings.Join(labels[:last], "."),
		Domain:    labels[last],
	}
}

// hostOf returns the lowercase host of a URL without scheme, userinfo,
// port, path, query or fragment.
func hostOf(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	s = schemeRegex.ReplaceAllString(s, "")

	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}

	if strings.HasPrefix(s, "[") {
		// IPv6 literal
		if end := strings.Index(s, "]"); end > 0 {
			return strings.ToLower(s[1:end])
		}
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[:i]
	}

	return strings.TrimSuffix(strings.ToLower(s), ".")
}

// applyURLFeatures fills the URL-derived fields of v.
func applyURLFeatures(rawURL string, v *model.FeatureVector) {
	length := utf8.RuneCountInString(rawURL)
	parts := SplitHost(rawURL)

	v.UsingIP = flag(ipURLRegex.MatchString(rawURL))
	v.LongURL = flag(length >= longURLThreshold)
	v.ShortURL = flag(length <= shortURLThreshold)
	v.SymbolAt = flag(strings.Contains(rawURL, "@"))
	v.Redirecting = flag(strings.Contains(skipRunes(rawURL, redirectOffset), "//"))
	v.PrefixSuffix = flag(strings.Contains(parts.Domain, "-"))
	v.SubDomains = countSubdomains(parts.Subdomain)
	v.HTTPS = flag(strings.HasPrefix(rawURL, "https://"))
	v.DomainRegLen = 0
	v.NonStdPort = flag(strings.Contains(afterLastDoubleSlash(rawURL), ":"))
	v.HTTPSDomainURL = flag(strings.Contains(parts.Domain, "https"))
}

// countSubdomains returns the number of dot-separated labels in sub.
func countSubdomains(sub string) int {
	if sub == "" {
		return 0
	}
	return strings.Count(sub, ".") + 1
}

// skipRunes drops the first n characters of s.
func skipRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[i:]
		}
		n--
	}
	return ""
}

// afterLastDoubleSlash returns the part of s after the last "//", or s itself.
func afterLastDoubleSlash(s string) string {
	if i := strings.LastIndex(s, "//"); i >= 0 {
		return s[i+2:]
	}
	return s
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}
