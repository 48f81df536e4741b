package common

import (
	"net/url"
	"strings"
)

// MaskQuery returns rawURL with the values of the given query parameters
// replaced, so that URLs can be logged without leaking keys.
// Unparsable input is masked entirely.
func MaskQuery(rawURL string, keys ...string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	changed := false
	for _, k := range keys {
		if q.Has(k) {
			q.Set(k, mask(q.Get(k)))
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// mask keeps the last four characters of long secrets.
func mask(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return "***" + secret[len(secret)-4:]
}

// HasAny returns true if s contains any of the substrings.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
