package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.txt")
	depths := map[string]int{
		"https://docs.example.com/guide":   1,
		"https://docs.example.com/":        0,
		"https://docs.example.com/api/ref": 2,
	}

	err := Write(path, "https://docs.example.com", "https://docs.example.com/", depths,
		time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC), 90*time.Second)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")

	require.Equal(t, "# Crawl report for https://docs.example.com", lines[0])
	require.Contains(t, lines, "# Unique URLs: 3")

	// url lines come after the header, sorted
	require.Equal(t, []string{
		"https://docs.example.com/ (depth: 0)",
		"https://docs.example.com/api/ref (depth: 2)",
		"https://docs.example.com/guide (depth: 1)",
	}, lines[len(lines)-3:])
}

func TestWriteReportEmptyCrawl(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	err := Write(path, "https://docs.example.com", "https://docs.example.com/", nil, time.Now(), 0)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# Unique URLs: 0")
}
