package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// nonPageExtensions lists resource suffixes that are recorded when discovered
// as links but never enqueued for full evaluation.
var nonPageExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico",
	".css", ".js", ".mjs",
	".pdf", ".zip", ".gz", ".tar",
	".mp3", ".mp4", ".webm", ".avi",
	".woff", ".woff2", ".ttf", ".eot",
	".xml", ".rss", ".atom", ".json",
}

// NormalizeURL canonicalizes a URL for deduplication: lower-cased host,
// stripped fragment, trailing-slash-normalized path. The query string is
// preserved since it can select distinct pages.
func NormalizeURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.Host = strings.ToLower(c.Host)
	if c.Path == "" {
		c.Path = "/"
	}
	if c.Path != "/" {
		c.Path = strings.TrimSuffix(c.Path, "/")
	}
	return c.String()
}

// RegistrableDomain reduces a hostname to its last two labels, ignoring a
// leading "www.". Example: blog.example.com -> example.com
func RegistrableDomain(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "." + parts[len(parts)-1]
	}
	return host
}

// InScope reports whether a URL belongs to the audit target: same registrable
// domain as the root, ignoring scheme and www.
func InScope(u *url.URL, domain string) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return RegistrableDomain(u.Hostname()) == domain
}

// IsPageURL reports whether a URL plausibly points at an HTML document rather
// than a static resource.
func IsPageURL(u *url.URL) bool {
	path := strings.ToLower(u.Path)
	for _, ext := range nonPageExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}
	return true
}

// ParseTargetURL validates a raw audit target: it must be an absolute
// http or https URL with a host.
func ParseTargetURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", raw)
	}
	return u, nil
}
