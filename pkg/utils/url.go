package utils

import (
	"net/url"
	"strings"
)

// Slug returns the last non-empty path segment of rawURL, unescaped.
func Slug(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] == "" {
			continue
		}
		if s, err := url.PathUnescape(segments[i]); err == nil {
			return s
		}
		return segments[i]
	}
	return ""
}

// QueryTerm returns the first token of the URL slug, splitting on dashes,
// underscores, plus signs and whitespace.
func QueryTerm(rawURL string) string {
	tokens := strings.FieldsFunc(Slug(rawURL), func(r rune) bool {
		switch r {
		case '-', '_', '+', ' ', '\t':
			return true
		}
		return false
	})
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}

// IsHTTPURL reports whether rawURL is an absolute http(s) URL with a host.
func IsHTTPURL(rawURL string) bool {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
