package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns skip pages that never list people: long-form
// content and binary downloads.
var defaultExcludePatterns = []string{
	"/blog/*",
	"/news/*",
	"/press/*",
	"/events/*",
	"/*.pdf",
	"/*.zip",
}

// PathMatcher filters URLs based on glob-style path patterns. A pattern
// ending in "/*" also matches every deeper path under its directory.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher from glob patterns (e.g. "/blog/*",
// "/*.pdf"). Falls back to default patterns if none are provided.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &PathMatcher{patterns: lowered}
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded reports whether a URL matches any exclude pattern. Unparseable
// URLs are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, pattern := range m.patterns {
		if matchSegmented(pattern, p) {
			return true
		}
	}
	return false
}

func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/")
	}
	return false
}

// contactPaths are the pages most likely to list people, in fetch order.
var contactPaths = []string{
	"",
	"/about",
	"/about-us",
	"/team",
	"/our-team",
	"/leadership",
	"/people",
	"/contact",
	"/contact-us",
}

// ContactPageURLs returns the candidate people/contact pages of a company
// website. A bare host is treated as https. Returns nil when website has no
// usable host.
func ContactPageURLs(website string) []string {
	website = strings.TrimSpace(website)
	if website == "" {
		return nil
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil || u.Host == "" {
		return nil
	}
	base := u.Scheme + "://" + u.Host
	out := make([]string, len(contactPaths))
	for i, p := range contactPaths {
		out[i] = base + p
		if p == "" {
			out[i] = base + "/"
		}
	}
	return out
}
