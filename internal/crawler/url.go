// Package crawler implements the single-domain crawl engine: the URL
// frontier, the politeness governor, the fetch-retry pipeline, link
// extraction, and the worker-pool scheduler that drives them.
package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// blockedExtensions lists path suffixes that never point at crawlable
// documents: archives, media, images, stylesheets, scripts, office files.
var blockedExtensions = []string{
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".zip", ".rar", ".tar", ".gz", ".mp3", ".mp4", ".avi",
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".ico", ".css", ".js",
}

var blockedSchemes = []string{"mailto:", "tel:", "javascript:"}

// NormalizeURL strips the fragment component and nothing else. Scheme,
// host, path, and query survive untouched so two discoveries of the same
// document with different anchors collapse to one canonical URL.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// ValidateURL reports whether a candidate URL is worth crawling. It rejects
// empty input, fragment-only references, non-HTTP(S) schemes, mailto/tel/
// javascript pseudo-links, and paths ending in a blocked extension.
func ValidateURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return false
	}
	lower := strings.ToLower(raw)
	for _, scheme := range blockedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range blockedExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}
	return true
}

// SameDomain reports whether rawURL lives on exactly the same scheme, host,
// and port as base. Subdomains are distinct domains on purpose: a docs
// crawl for example.com must not wander into cdn.example.com.
func SameDomain(rawURL, base string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, b.Scheme) && strings.EqualFold(u.Host, b.Host)
}

// BaseDomain reduces a URL to its scheme://host origin, the crawl boundary.
func BaseDomain(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", raw)
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}
