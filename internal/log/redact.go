package log

import (
	"net/url"
	"strings"
)

// sensitiveParams are query parameter names whose values are masked in
// logged URLs. Matching is case-insensitive and also catches names that
// contain one of the entries (e.g. "access_token", "X-Amz-Signature").
var sensitiveParams = []string{
	"token", "password", "passwd", "secret", "session", "sid",
	"key", "signature", "sig", "auth", "code", "credential",
}

// RedactURL masks the userinfo password and sensitive query parameter values
// of an absolute URL. It reports whether anything was masked; values that
// are not absolute URLs are returned unchanged.
func RedactURL(raw string) (string, bool) {
	if !strings.Contains(raw, "://") {
		return raw, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw, false
	}

	changed := false
	if u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), MaskValue)
			changed = true
		}
	}

	if u.RawQuery != "" {
		q, err := url.ParseQuery(u.RawQuery)
		if err == nil {
			for name, values := range q {
				if !isSensitiveParam(name) {
					continue
				}
				for i := range values {
					values[i] = MaskValue
				}
				changed = true
			}
			if changed {
				u.RawQuery = q.Encode()
			}
		}
	}

	if !changed {
		return raw, false
	}
	// url.URL.String escapes the mask; keep it readable.
	out := strings.ReplaceAll(u.String(), url.QueryEscape(MaskValue), MaskValue)
	out = strings.ReplaceAll(out, url.PathEscape(MaskValue), MaskValue)
	return out, true
}

func isSensitiveParam(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range sensitiveParams {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
