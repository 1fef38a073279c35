// Package urlutil compares and builds the URLs a check navigates between.
package urlutil

import (
	"net/url"
	"strings"
)

// BuildAbsolute builds an absolute URL from a base origin and a path.
func BuildAbsolute(base, path string) string {
	base = NormalizeBaseURL(base)
	if path == "" {
		return base
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return base + path
	}
	return base + "/" + path
}

// SameOrigin reports whether rawURL has the same scheme and host[:port] as base.
func SameOrigin(rawURL, base string) bool {
	a, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || a.Host == "" {
		return false
	}
	b, err := url.Parse(NormalizeBaseURL(base))
	if err != nil || b.Host == "" {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

// IsExactLanding reports whether rawURL is exactly base, with or without a
// single trailing slash. Query strings and extra path segments do not match.
func IsExactLanding(rawURL, base string) bool {
	base = NormalizeBaseURL(base)
	if base == "" {
		return false
	}
	return rawURL == base || rawURL == base+"/"
}

// ContainsAny reports whether rawURL contains any of the non-empty patterns.
func ContainsAny(rawURL string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p != "" && strings.Contains(rawURL, p) {
			return true
		}
	}
	return false
}

// NormalizeBaseURL trims whitespace and trailing slashes.
func NormalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/")
}
