// Package report renders the human-readable summary of a finished crawl.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Write produces the text report at path: a commented header followed by
// one sorted line per discovered URL with its discovery depth.
func Write(path, domain, startURL string, depths map[string]int, generatedAt time.Time, elapsed time.Duration) error {
	urls := make([]string, 0, len(depths))
	for u := range depths {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	var b strings.Builder
	fmt.Fprintf(&b, "# Crawl report for %s\n", domain)
	fmt.Fprintf(&b, "# Start URL: %s\n", startURL)
	fmt.Fprintf(&b, "# Generated: %s\n", generatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "# Elapsed: %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "# Unique URLs: %d\n", len(urls))
	b.WriteString("\n")
	for _, u := range urls {
		fmt.Fprintf(&b, "%s (depth: %d)\n", u, depths[u])
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
