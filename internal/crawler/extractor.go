package crawler

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ContentResult is a two-variant classification of a fetched page body:
// either the static HTML already carries the content and links, or the
// page needs a JavaScript renderer before extraction is worthwhile.
type ContentResult struct {
	NeedsRendering bool
	Reason         string
}

// frameworkMarkers are substrings whose presence in a page strongly
// suggests a client-side rendered application shell.
var frameworkMarkers = []string{
	"react", "vue", "angular", "ember", "backbone",
	"data-reactroot", "ng-app", "ng-controller", "v-app",
	"x-data", "__initial_state__", "__preloaded_state__",
	`id="app"`, `id="root"`,
}

// dynamicPatterns match script activity that usually means the DOM is
// populated at runtime rather than delivered in the HTML.
var dynamicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<script[^>]+src=`),
	regexp.MustCompile(`window\.`),
	regexp.MustCompile(`document\.`),
	regexp.MustCompile(`addEventListener\(`),
	regexp.MustCompile(`fetch\(`),
	regexp.MustCompile(`XMLHttpRequest`),
}

// scriptURLPattern pulls absolute and root-relative URLs out of inline
// script text, where SPA-style sites often hide their navigation.
var scriptURLPattern = regexp.MustCompile(`["']((?:https?://|/)[^"'\s]+)["']`)

// minStaticTextLength is the visible-text threshold below which a page
// with dynamic markers is treated as an empty shell.
const minStaticTextLength = 200

// LinkExtractor parses HTML documents for outbound links and decides
// whether a page needs JavaScript rendering.
type LinkExtractor struct {
	logger *zap.Logger
}

func NewLinkExtractor(logger *zap.Logger) *LinkExtractor {
	return &LinkExtractor{logger: logger}
}

// Extract returns the normalized, validated, page-level-deduplicated set
// of links found in body. Relative references are resolved against
// pageURL. Non-HTML bodies yield no links.
func (e *LinkExtractor) Extract(body []byte, contentType, pageURL string) []string {
	if !isHTML(contentType) {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		e.logger.Warn("unparseable page url", zap.String("url", pageURL), zap.Error(err))
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("html parse failed", zap.String("url", pageURL), zap.Error(err))
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	add := func(raw string) {
		resolved := resolveRef(base, raw)
		if resolved == "" {
			return
		}
		normalized, err := NormalizeURL(resolved)
		if err != nil || !ValidateURL(normalized) {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			add(href)
		}
	})

	// SPA navigations often live in data attributes or inline scripts
	// rather than anchors.
	for _, attr := range []string{"data-url", "data-href", "data-link"} {
		doc.Find("[" + attr + "]").Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr(attr); ok {
				add(v)
			}
		})
	}
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		for _, m := range scriptURLPattern.FindAllStringSubmatch(s.Text(), -1) {
			add(m[1])
		}
	})

	return links
}

// ClassifyContent decides between the static and needs-rendering variants
// for a fetched body. The decision is a heuristic; callers treat a
// rendering failure as a fallback to the static variant, never an error.
func (e *LinkExtractor) ClassifyContent(body []byte, contentType string) ContentResult {
	if !isHTML(contentType) {
		return ContentResult{}
	}
	lower := strings.ToLower(string(body))

	for _, marker := range frameworkMarkers {
		if strings.Contains(lower, marker) {
			return ContentResult{NeedsRendering: true, Reason: "framework marker: " + marker}
		}
	}

	dynamic := false
	for _, pat := range dynamicPatterns {
		if pat.MatchString(lower) {
			dynamic = true
			break
		}
	}
	if !dynamic {
		return ContentResult{}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ContentResult{}
	}
	text := strings.TrimSpace(doc.Find("body").Text())
	if len(text) < minStaticTextLength {
		return ContentResult{NeedsRendering: true, Reason: "dynamic scripts with sparse static text"}
	}
	return ContentResult{}
}

// isHTML restricts extraction to declared HTML bodies. A missing
// content type is treated as non-HTML: no links, no render heuristics.
func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

func resolveRef(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
